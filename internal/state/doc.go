// Package state provides filesystem-backed storage: the index of sessions
// opened on this machine, a local mirror of each transcript, single-slot
// attachments and saved prompts.
//
// Layout under the root directory:
//
//	sessions/sessions.json
//	sessions/<id>/transcript.jsonl
//	sessions/<id>/attachments/<kind>.json
//	sessions/<id>/attachments/<kind>.bin
//	prompts.json
package state

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/user/resumechat/internal/types"
)

// Compile-time interface compliance checks.
var _ types.HistoryStore = (*TranscriptStore)(nil)
var _ types.AttachmentStore = (*ArtifactStore)(nil)

// writeAtomic writes data to a temp file next to path and renames it into
// place.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// sessionDir returns the directory of session id under root, rejecting ids
// that would resolve outside it.
func sessionDir(root string, id types.SessionID) (string, error) {
	if err := id.Validate(); err != nil {
		return "", fmt.Errorf("%w: %q", err, id)
	}
	return filepath.Join(root, "sessions", string(id)), nil
}
