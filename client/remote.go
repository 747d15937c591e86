package client

import (
	"fmt"
	"strings"

	"github.com/biogit/biogit/errs"
)

// remoteScheme is the URL scheme biogit remotes use in place of git's
// transport URL zoo (ssh://, https://, git://, ...) — spec.md §1 scopes
// out everything but this one custom TCP wire protocol, so a remote is
// just an address and a repository path (SUPPLEMENTED FEATURES, see
// DESIGN.md).
const remoteScheme = "biogit://"

// ParseRemoteURL splits a "biogit://host:port/repo" remote URL into its
// dial address and repository path.
func ParseRemoteURL(url string) (addr, repoPath string, err error) {
	if !strings.HasPrefix(url, remoteScheme) {
		return "", "", fmt.Errorf("%w: remote url %q missing %q scheme", errs.ErrInvalidPath, url, remoteScheme)
	}
	rest := strings.TrimPrefix(url, remoteScheme)
	slash := strings.IndexByte(rest, '/')
	if slash < 0 {
		return "", "", fmt.Errorf("%w: remote url %q missing repo path", errs.ErrInvalidPath, url)
	}
	return rest[:slash], rest[slash+1:], nil
}
