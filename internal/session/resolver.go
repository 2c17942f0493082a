// Package session resolves which chat session the client is looking at.
package session

import (
	"strings"
	"sync"

	"github.com/user/resumechat/internal/types"
)

// Navigator replaces the current route, e.g. by rewriting a URL or, in the
// terminal client, by recording the new session as the active one.
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(path string)

func (f NavigatorFunc) Navigate(path string) { f(path) }

// Resolver turns a route's session parameter into a SessionID. It generates
// at most one new identifier per mount and navigates to it exactly once.
type Resolver struct {
	nav Navigator

	mu      sync.Mutex
	pending types.SessionID
}

// NewResolver creates a Resolver that reports generated sessions to nav.
func NewResolver(nav Navigator) *Resolver {
	return &Resolver{nav: nav}
}

// Resolve returns param verbatim when it is non-empty. Otherwise it mints a
// v4 UUID and navigates to "/<uuid>"; later calls made before the route
// carries the new identifier return the same id without navigating again.
func (r *Resolver) Resolve(param string) types.SessionID {
	if param != "" {
		return types.SessionID(param)
	}

	r.mu.Lock()
	if r.pending != "" {
		id := r.pending
		r.mu.Unlock()
		return id
	}
	id := types.NewSessionID()
	r.pending = id
	r.mu.Unlock()

	if r.nav != nil {
		r.nav.Navigate(Path(id))
	}
	return id
}

// Path returns the route for a session.
func Path(id types.SessionID) string {
	return "/" + string(id)
}

// ParsePath extracts the session parameter from a route such as "/<uuid>".
// It returns "" for the base route.
func ParsePath(path string) string {
	path = strings.Trim(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		path = path[:i]
	}
	return path
}
