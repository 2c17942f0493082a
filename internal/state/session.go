// internal/state/session.go
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/user/resumechat/internal/types"
)

// ErrSessionNotFound is returned by Get for sessions never touched here.
var ErrSessionNotFound = errors.New("session not found")

// SessionInfo is one entry of the local session index.
type SessionInfo struct {
	ID        types.SessionID `json:"id"`
	Title     string          `json:"title,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// SessionStore is a JSON-file-backed index of sessions opened on this
// machine, stored in sessions/sessions.json.
type SessionStore struct {
	root string
	mu   sync.RWMutex
	now  func() time.Time
}

// NewSessionStore creates a new file-backed SessionStore rooted at the given directory.
func NewSessionStore(root string) *SessionStore {
	return &SessionStore{root: root, now: time.Now}
}

func (s *SessionStore) indexPath() string {
	return filepath.Join(s.root, "sessions", "sessions.json")
}

// loadIndex reads sessions.json and returns a map keyed by session ID.
func (s *SessionStore) loadIndex() (map[types.SessionID]*SessionInfo, error) {
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[types.SessionID]*SessionInfo), nil
		}
		return nil, fmt.Errorf("read session index: %w", err)
	}

	var sessions []*SessionInfo
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("unmarshal session index: %w", err)
	}

	index := make(map[types.SessionID]*SessionInfo, len(sessions))
	for _, sess := range sessions {
		index[sess.ID] = sess
	}
	return index, nil
}

func (s *SessionStore) saveIndex(index map[types.SessionID]*SessionInfo) error {
	data, err := json.MarshalIndent(sortSessions(index), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session index: %w", err)
	}
	if err := writeAtomic(s.indexPath(), data); err != nil {
		return fmt.Errorf("save session index: %w", err)
	}
	return nil
}

// Touch records that a session was used now. A non-empty title replaces the
// stored one; an empty title keeps it.
func (s *SessionStore) Touch(_ context.Context, id types.SessionID, title string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.loadIndex()
	if err != nil {
		return nil, err
	}

	now := s.now()
	sess, ok := index[id]
	if !ok {
		sess = &SessionInfo{ID: id, CreatedAt: now}
		index[id] = sess
	}
	sess.UpdatedAt = now
	if title != "" {
		sess.Title = title
	}

	if err := s.saveIndex(index); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get returns the session with the given ID.
func (s *SessionStore) Get(_ context.Context, id types.SessionID) (*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	index, err := s.loadIndex()
	if err != nil {
		return nil, err
	}
	sess, ok := index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// List returns all sessions, most recently used first.
func (s *SessionStore) List(_ context.Context) ([]*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	index, err := s.loadIndex()
	if err != nil {
		return nil, err
	}
	return sortSessions(index), nil
}

func sortSessions(index map[types.SessionID]*SessionInfo) []*SessionInfo {
	sessions := make([]*SessionInfo, 0, len(index))
	for _, sess := range index {
		sessions = append(sessions, sess)
	}
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].UpdatedAt.Equal(sessions[j].UpdatedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions
}
