package client

import (
	"fmt"

	"github.com/biogit/biogit/hash"
	"github.com/biogit/biogit/object"
	"github.com/biogit/biogit/refstore"
	"github.com/biogit/biogit/repo"
)

// Fetch implements spec.md §4.9's Fetch(remote, token, [ref]): list the
// remote's refs, then for each target branch whose tip is new, walk its
// object graph down via a level-by-level work queue (fan-out bounded by
// a connection pool) and write the result under
// refs/remotes/<remote>/<branch>.
func Fetch(r *repo.Repository, remoteName, username, password string, only string, poolSize int) error {
	_, err := fetchInto(r, remoteName, username, password, only, poolSize)
	return err
}

// fetchInto does the work behind Fetch and also returns the server's full
// ref listing, which Clone needs to resolve the default branch HEAD points
// to without a second round trip.
func fetchInto(r *repo.Repository, remoteName, username, password, only string, poolSize int) (map[string]string, error) {
	addr, repoPath, err := remoteAddr(r, remoteName)
	if err != nil {
		return nil, err
	}

	conn, err := DialTimeout(addr, dialTimeout)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	if err := conn.Login(username, password); err != nil {
		return nil, err
	}
	if err := conn.TargetRepo(repoPath); err != nil {
		return nil, err
	}

	refs, err := conn.ListRefs()
	if err != nil {
		return nil, err
	}

	pool, err := NewPool(addr, conn.Token(), repoPath, poolSize)
	if err != nil {
		return nil, err
	}
	defer pool.Close()

	for name, value := range refs {
		branch, ok := branchName(name)
		if !ok {
			continue
		}
		if only != "" && branch != only {
			continue
		}
		commitHash, err := hash.FromHex(value)
		if err != nil {
			continue // symbolic HEAD entry, not a direct ref
		}
		if err := fetchObjectGraph(r, pool, commitHash); err != nil {
			return nil, err
		}
		if err := r.Refs.WriteRef(refstore.RemotesPrefix+remoteName+"/"+branch, commitHash); err != nil {
			return nil, err
		}
	}
	return refs, nil
}

func branchName(refName string) (string, bool) {
	const prefix = refstore.HeadsPrefix
	if len(refName) <= len(prefix) || refName[:len(prefix)] != prefix {
		return "", false
	}
	return refName[len(prefix):], true
}

// fetchObjectGraph walks the reachable object graph rooted at root one
// breadth-first level at a time, fetching each level's missing objects
// concurrently across pool's connections, decoding each to discover the
// next level (Commit -> tree + parents, Tree -> entries, Blob -> none).
// An object already present locally is assumed, by the store's write-once
// invariant, to already have everything it references, so its subtree is
// not re-walked.
func fetchObjectGraph(r *repo.Repository, pool *Pool, root hash.Hash) error {
	frontier := []hash.Hash{root}
	visited := map[hash.Hash]bool{}

	for len(frontier) > 0 {
		var toFetch []hash.Hash
		for _, h := range frontier {
			if h.IsZero() || visited[h] || r.Objects.Exists(h) {
				continue
			}
			visited[h] = true
			toFetch = append(toFetch, h)
		}

		fetched, err := pool.FetchMissing(toFetch)
		if err != nil {
			return err
		}

		var next []hash.Hash
		for h, raw := range fetched {
			if err := r.Objects.WriteRaw(h, raw); err != nil {
				return err
			}
			t, body, err := object.Unframe(raw)
			if err != nil {
				return fmt.Errorf("client: fetched object %s: %w", h, err)
			}
			switch t {
			case object.CommitObject:
				c, err := object.DecodeCommit(body)
				if err != nil {
					return err
				}
				next = append(next, c.TreeHash)
				next = append(next, c.ParentHashes...)
			case object.TreeObject:
				tree, err := object.DecodeTree(body)
				if err != nil {
					return err
				}
				for _, e := range tree.Entries {
					next = append(next, e.Hash)
				}
			}
		}
		frontier = next
	}
	return nil
}
