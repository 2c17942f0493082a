// internal/types/ids.go
package types

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

type SessionID string
type MessageID string

// ErrInvalidSessionID is returned for ids that cannot name a session
// directory.
var ErrInvalidSessionID = errors.New("invalid session id")

// NewSessionID returns a random (version 4) UUID suitable for a new chat session.
func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}

func NewMessageID() MessageID {
	return MessageID(uuid.New().String())
}

// Validate checks that id is a single local path element.
func (id SessionID) Validate() error {
	s := string(id)
	if s == "" || s == "." || strings.ContainsAny(s, `/\`) || !filepath.IsLocal(s) {
		return ErrInvalidSessionID
	}
	return nil
}

// IsUUIDv4 reports whether s is a canonical version 4 UUID.
func IsUUIDv4(s string) bool {
	id, err := uuid.Parse(s)
	if err != nil || len(s) != 36 {
		return false
	}
	return id.Version() == 4 && id.Variant() == uuid.RFC4122
}
