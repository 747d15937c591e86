package auth

import (
	"fmt"
	"sync"

	"github.com/biogit/biogit/errs"
	"golang.org/x/crypto/bcrypt"
)

// Registry is the server-global user store (spec.md §5: "shared across
// workers ... protect mutable state with a mutex"). Passwords are hashed
// with bcrypt rather than compared in plaintext — go-git's own transport
// stack pulls in golang.org/x/crypto for its SSH auth; biogit reuses the
// same module's bcrypt package for its much narrower login/register
// surface instead of the ssh subpackages it has no transport to serve
// (see DESIGN.md).
type Registry struct {
	mu    sync.Mutex
	users map[string][]byte // username -> bcrypt hash
}

// NewRegistry returns an empty user registry.
func NewRegistry() *Registry {
	return &Registry{users: make(map[string][]byte)}
}

// Register creates a new user, failing if the username is already taken.
func (r *Registry) Register(username, password string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[username]; exists {
		return fmt.Errorf("%w: username %q already registered", errs.ErrInvalidCredentials, username)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("%w: hashing password: %v", errs.ErrIO, err)
	}
	r.users[username] = hashed
	return nil
}

// Authenticate verifies username/password, returning ErrInvalidCredentials
// on any mismatch (unknown user and wrong password are indistinguishable
// to the caller, by design).
func (r *Registry) Authenticate(username, password string) error {
	r.mu.Lock()
	hashed, ok := r.users[username]
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: unknown user", errs.ErrInvalidCredentials)
	}
	if err := bcrypt.CompareHashAndPassword(hashed, []byte(password)); err != nil {
		return fmt.Errorf("%w: password mismatch", errs.ErrInvalidCredentials)
	}
	return nil
}
