package client

import (
	"fmt"
	"strings"

	"github.com/biogit/biogit/errs"
	"github.com/biogit/biogit/refstore"
	"github.com/biogit/biogit/repo"
)

// Clone implements spec.md §4.9's Clone(url, target_dir): initialize an
// empty repository at targetDir, register url as the "origin" remote,
// fetch everything origin offers, then switch to whichever branch the
// remote's HEAD points at.
func Clone(url, targetDir, username, password string, poolSize int) (*repo.Repository, error) {
	r, err := repo.Init(targetDir)
	if err != nil {
		return nil, err
	}
	if err := r.AddRemote("origin", url); err != nil {
		return nil, err
	}

	refs, err := fetchInto(r, "origin", username, password, "", poolSize)
	if err != nil {
		return nil, err
	}

	branch, err := defaultBranch(refs)
	if err != nil {
		return nil, err
	}

	remoteHash, err := r.Refs.ReadRef(refstore.RemotesPrefix + "origin/" + branch)
	if err != nil {
		return nil, fmt.Errorf("client: clone: origin has no branch %q: %w", branch, err)
	}
	if err := r.Refs.CompareAndSwap(refstore.HeadsPrefix+branch, remoteHash, nil); err != nil {
		return nil, err
	}
	if err := r.Switch(branch); err != nil {
		return nil, err
	}
	return r, nil
}

// defaultBranch resolves the branch name the remote's symbolic HEAD
// points at, e.g. "ref: refs/heads/main" -> "main".
func defaultBranch(refs map[string]string) (string, error) {
	value, ok := refs[refstore.HeadName]
	if !ok {
		return "", fmt.Errorf("%w: remote did not report HEAD", errs.ErrProtocolError)
	}
	const symPrefix = "ref: "
	if !strings.HasPrefix(value, symPrefix) {
		return "", fmt.Errorf("%w: remote HEAD is detached, cannot determine default branch", errs.ErrProtocolError)
	}
	target := strings.TrimPrefix(value, symPrefix)
	name, ok := branchName(target)
	if !ok {
		return "", fmt.Errorf("%w: remote HEAD target %q is not a branch ref", errs.ErrProtocolError, target)
	}
	return name, nil
}
