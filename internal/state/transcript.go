// internal/state/transcript.go
package state

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/user/resumechat/internal/types"
)

const maxLineSize = 4 << 20

// TranscriptStore keeps one JSONL file per session at
// sessions/<sessionID>/transcript.jsonl, one message per line.
type TranscriptStore struct {
	root  string
	mu    sync.Mutex
	locks map[types.SessionID]*sync.Mutex
}

// NewTranscriptStore creates a new file-backed TranscriptStore rooted at the given directory.
func NewTranscriptStore(root string) *TranscriptStore {
	return &TranscriptStore{
		root:  root,
		locks: make(map[types.SessionID]*sync.Mutex),
	}
}

// getLock returns the per-session mutex, creating one if it doesn't exist.
func (s *TranscriptStore) getLock(id types.SessionID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lock, ok := s.locks[id]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	s.locks[id] = lock
	return lock
}

func (s *TranscriptStore) path(id types.SessionID) (string, error) {
	dir, err := sessionDir(s.root, id)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "transcript.jsonl"), nil
}

// Append adds one message to the end of the session's transcript.
func (s *TranscriptStore) Append(_ context.Context, id types.SessionID, msg types.Message) error {
	path, err := s.path(id)
	if err != nil {
		return err
	}
	lock := s.getLock(id)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// Replace overwrites the session's transcript.
func (s *TranscriptStore) Replace(_ context.Context, id types.SessionID, t types.Transcript) error {
	path, err := s.path(id)
	if err != nil {
		return err
	}
	lock := s.getLock(id)
	lock.Lock()
	defer lock.Unlock()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, msg := range t {
		if err := enc.Encode(msg); err != nil {
			return fmt.Errorf("marshal message: %w", err)
		}
	}
	if err := writeAtomic(path, buf.Bytes()); err != nil {
		return fmt.Errorf("replace transcript: %w", err)
	}
	return nil
}

// History returns the stored transcript, empty when the session has none.
// The token is ignored; local files need no credential.
func (s *TranscriptStore) History(_ context.Context, _ string, id types.SessionID) (types.Transcript, error) {
	path, err := s.path(id)
	if err != nil {
		return nil, err
	}
	lock := s.getLock(id)
	lock.Lock()
	defer lock.Unlock()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return types.Transcript{}, nil
		}
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	t := types.Transcript{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		if len(bytes.TrimSpace(scanner.Bytes())) == 0 {
			continue
		}
		var msg types.Message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			return nil, fmt.Errorf("unmarshal message: %w", err)
		}
		t = append(t, msg)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan transcript: %w", err)
	}
	return t, nil
}

// Count returns the number of stored messages for the session.
func (s *TranscriptStore) Count(ctx context.Context, id types.SessionID) (int, error) {
	t, err := s.History(ctx, "", id)
	if err != nil {
		return 0, err
	}
	return len(t), nil
}
