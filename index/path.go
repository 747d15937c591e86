package index

import (
	"fmt"
	"path"
	"strings"

	"github.com/biogit/biogit/errs"
)

// NormalizePath converts an OS-relative path into the workdir-relative,
// forward-slash, dot-free form the index stores (spec.md §4.2: "callers
// must normalize before calling").
func NormalizePath(p string) (string, error) {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimPrefix(p, "./")
	clean := path.Clean(p)

	if clean == "." || clean == "" {
		return "", fmt.Errorf("%w: empty path", errs.ErrInvalidPath)
	}
	if clean == ".." || strings.HasPrefix(clean, "../") || strings.HasPrefix(clean, "/") {
		return "", fmt.Errorf("%w: path %q escapes the working tree", errs.ErrInvalidPath, p)
	}
	return clean, nil
}
