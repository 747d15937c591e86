package client

import (
	"sync"

	"github.com/biogit/biogit/hash"
	"github.com/biogit/biogit/objstore"
	"golang.org/x/sync/errgroup"
)

// ancestorsOf collects every commit reachable from start (start included),
// mirroring package merge's LCA ancestor walk but kept local to client so
// this package does not need to export it from merge.
func ancestorsOf(store *objstore.Store, start hash.Hash) (map[hash.Hash]bool, error) {
	set := map[hash.Hash]bool{}
	queue := []hash.Hash{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.IsZero() || set[cur] {
			continue
		}
		set[cur] = true
		c, err := store.ReadCommit(cur)
		if err != nil {
			return nil, err
		}
		queue = append(queue, c.ParentHashes...)
	}
	return set, nil
}

// getCommitsBetween returns every commit reachable from local but not
// from remote (spec.md §4.9 step 3's "get_commits_between"). A remote tip
// that store does not hold cannot be walked, so every commit reachable from
// local is returned instead; the server then decides whether the update
// is a fast-forward.
func getCommitsBetween(store *objstore.Store, local, remote hash.Hash) ([]hash.Hash, error) {
	if !remote.IsZero() && !store.Exists(remote) {
		remote = hash.Zero
	}
	exclude, err := ancestorsOf(store, remote)
	if err != nil {
		return nil, err
	}
	var out []hash.Hash
	visited := map[hash.Hash]bool{}
	queue := []hash.Hash{local}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.IsZero() || visited[cur] {
			continue
		}
		visited[cur] = true
		if exclude[cur] {
			continue
		}
		out = append(out, cur)
		c, err := store.ReadCommit(cur)
		if err != nil {
			return nil, err
		}
		queue = append(queue, c.ParentHashes...)
	}
	return out, nil
}

// collectObjectsRecursiveForPush expands commits to every Tree/Blob hash
// they reference (spec.md §4.9 step 3's "collect_objects_recursive_for_push"),
// walking each commit's tree concurrently via errgroup since these are
// independent local disk reads with no wire round trip involved.
func collectObjectsRecursiveForPush(store *objstore.Store, commits []hash.Hash) (map[hash.Hash]bool, error) {
	var mu sync.Mutex
	all := make(map[hash.Hash]bool, len(commits)*4)
	for _, c := range commits {
		all[c] = true
	}

	var g errgroup.Group
	for _, c := range commits {
		c := c
		g.Go(func() error {
			commit, err := store.ReadCommit(c)
			if err != nil {
				return err
			}
			local := map[hash.Hash]bool{}
			if err := collectTree(store, commit.TreeHash, local); err != nil {
				return err
			}
			mu.Lock()
			for h := range local {
				all[h] = true
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return all, nil
}

func collectTree(store *objstore.Store, treeHash hash.Hash, into map[hash.Hash]bool) error {
	if treeHash.IsZero() || into[treeHash] {
		return nil
	}
	into[treeHash] = true
	tree, err := store.ReadTree(treeHash)
	if err != nil {
		return err
	}
	for _, e := range tree.Entries {
		if e.Mode.IsDir() {
			if err := collectTree(store, e.Hash, into); err != nil {
				return err
			}
			continue
		}
		into[e.Hash] = true
	}
	return nil
}

// hashSetToSlice is a small convenience for turning collected hash sets
// into the ordered form CheckObjects/FetchMissing expect.
func hashSetToSlice(set map[hash.Hash]bool) []hash.Hash {
	out := make([]hash.Hash, 0, len(set))
	for h := range set {
		out = append(out, h)
	}
	return out
}
