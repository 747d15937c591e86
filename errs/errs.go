// Package errs collects the sentinel error kinds shared by every biogit
// subsystem (spec.md §7). Each kind is a plain sentinel, wrapped with
// fmt.Errorf("...: %w", ErrX) at the call site and unwrapped with
// errors.Is/errors.As by callers — the same shape go-git uses for its
// per-package sentinel errors (plumbing.ErrObjectNotFound and friends),
// just centralized here because biogit's kinds cross package boundaries
// (the wire protocol and the CLI both need to map the same kind to a
// response code or an exit status).
package errs

import "errors"

var (
	// ErrNotFound is returned when an object, ref, or path does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAmbiguous is returned when a hash prefix matches more than one object.
	ErrAmbiguous = errors.New("ambiguous hash prefix")
	// ErrCorruptObject is returned when a stored object's header doesn't
	// match its content, or a referenced object is unexpectedly missing.
	ErrCorruptObject = errors.New("corrupt object")
	// ErrCorruptIndex is returned when the index file cannot be parsed.
	ErrCorruptIndex = errors.New("corrupt index")
	// ErrIO wraps an underlying filesystem error.
	ErrIO = errors.New("i/o error")
	// ErrInvalidRefName is returned for a malformed ref name.
	ErrInvalidRefName = errors.New("invalid ref name")
	// ErrInvalidPath is returned for a path that is empty or escapes the
	// working tree (e.g. via ".." segments) when staging or removing it.
	ErrInvalidPath = errors.New("invalid path")
	// ErrRefMismatch is returned when update-ref's expected-old-hash does
	// not match the ref's current value.
	ErrRefMismatch = errors.New("ref compare-and-swap mismatch")
	// ErrNotFastForward is returned when a non-forced update would not be
	// a fast-forward.
	ErrNotFastForward = errors.New("not a fast-forward update")
	// ErrWorkingDirectoryDirty is returned when an operation would
	// overwrite or delete a workdir file that differs from the baseline.
	ErrWorkingDirectoryDirty = errors.New("working directory has uncommitted changes")
	// ErrConflictsPresent is returned by merge when one or more paths
	// conflict; no commit is created.
	ErrConflictsPresent = errors.New("merge produced conflicts")
	// ErrAuthRequired is returned when a request needs a valid token and
	// none, or an invalid one, was presented.
	ErrAuthRequired = errors.New("authentication required")
	// ErrInvalidCredentials is returned by login on a bad username/password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrProtocolError is returned for a malformed wire frame or message.
	ErrProtocolError = errors.New("protocol error")
	// ErrRepoNotSelected is returned when a repository operation is
	// requested on a session that has not sent TARGET_REPO yet.
	ErrRepoNotSelected = errors.New("no repository selected")
)
