package client

import (
	"fmt"
	"time"

	"github.com/biogit/biogit/errs"
	"github.com/biogit/biogit/hash"
	"github.com/biogit/biogit/repo"
	"github.com/biogit/biogit/wire"
)

// dialTimeout bounds every control-connection dial/login/target-repo
// round trip client operations perform.
const dialTimeout = 10 * time.Second

// remoteAddr resolves a configured remote name to its dial address and
// repository path.
func remoteAddr(r *repo.Repository, remoteName string) (addr, repoPath string, err error) {
	remote, ok := r.Config.Remotes[remoteName]
	if !ok {
		return "", "", fmt.Errorf("%w: remote %q", errs.ErrNotFound, remoteName)
	}
	return ParseRemoteURL(remote.URL)
}

// Push implements spec.md §4.9's Push(remote, local_ref, remote_ref, force, token):
// negotiate the remote's current tip, ship every object it is missing,
// then attempt the ref update.
func Push(r *repo.Repository, remoteName, username, password, localRef, remoteRef string, force bool, poolSize int) error {
	addr, repoPath, err := remoteAddr(r, remoteName)
	if err != nil {
		return err
	}

	conn, err := DialTimeout(addr, dialTimeout)
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := conn.Login(username, password); err != nil {
		return err
	}
	if err := conn.TargetRepo(repoPath); err != nil {
		return err
	}

	refs, err := conn.ListRefs()
	if err != nil {
		return err
	}
	var remoteHash hash.Hash
	if value, ok := refs[remoteRef]; ok {
		remoteHash, err = hash.FromHex(value)
		if err != nil {
			return fmt.Errorf("client: remote ref %q has malformed value %q", remoteRef, value)
		}
	}

	localHash, err := r.Refs.ReadRef(localRef)
	if err != nil {
		return err
	}

	commits, err := getCommitsBetween(r.Objects, localHash, remoteHash)
	if err != nil {
		return err
	}
	candidates, err := collectObjectsRecursiveForPush(r.Objects, commits)
	if err != nil {
		return err
	}
	hashes := hashSetToSlice(candidates)

	present, err := conn.CheckObjects(hashes)
	if err != nil {
		return err
	}

	pool, err := NewPool(addr, conn.Token(), repoPath, poolSize)
	if err != nil {
		return err
	}
	defer pool.Close()

	toPush := map[hash.Hash][]byte{}
	for i, h := range hashes {
		if present[i] {
			continue
		}
		raw, err := r.Objects.ReadRaw(h)
		if err != nil {
			return err
		}
		toPush[h] = raw
	}
	if err := pool.PushMissing(toPush); err != nil {
		return err
	}

	return conn.UpdateRef(wire.UpdateRefRequest{
		Force:   force,
		RefName: remoteRef,
		New:     localHash,
	})
}
