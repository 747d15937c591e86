package client

import (
	"fmt"

	"github.com/biogit/biogit/merge"
	"github.com/biogit/biogit/refstore"
	"github.com/biogit/biogit/repo"
)

// Pull implements spec.md §4.9's Pull(remote, branch, token): fetch the
// remote's branch, then merge its tracking ref into the current branch.
func Pull(r *repo.Repository, remoteName, branch, username, password string, poolSize int) (merge.Result, error) {
	if err := Fetch(r, remoteName, username, password, branch, poolSize); err != nil {
		return 0, err
	}

	trackingRef := refstore.RemotesPrefix + remoteName + "/" + branch
	theirs, err := r.Refs.ReadRef(trackingRef)
	if err != nil {
		return 0, fmt.Errorf("client: pull: %w", err)
	}
	return r.Merge(theirs)
}
