package state

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/user/resumechat/internal/types"
)

// DraftStore keeps each session's unsent input at
// sessions/<sessionID>/draft.txt. An empty draft has no file.
type DraftStore struct {
	root string
}

func NewDraftStore(root string) *DraftStore {
	return &DraftStore{root: root}
}

func (d *DraftStore) path(id types.SessionID) (string, error) {
	dir, err := sessionDir(d.root, id)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "draft.txt"), nil
}

// Draft returns the saved input, "" when there is none.
func (d *DraftStore) Draft(id types.SessionID) (string, error) {
	path, err := d.path(id)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read draft: %w", err)
	}
	return string(data), nil
}

// SaveDraft stores text, removing the file when text is empty.
func (d *DraftStore) SaveDraft(id types.SessionID, text string) error {
	path, err := d.path(id)
	if err != nil {
		return err
	}
	if text == "" {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("clear draft: %w", err)
		}
		return nil
	}
	if err := writeAtomic(path, []byte(text)); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}
