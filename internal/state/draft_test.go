package state

import (
	"errors"
	"os"
	"testing"

	"github.com/user/resumechat/internal/types"
)

func TestDraftStore(t *testing.T) {
	store := NewDraftStore(t.TempDir())
	id := types.NewSessionID()

	got, err := store.Draft(id)
	if err != nil || got != "" {
		t.Fatalf("expected no draft, got %q (%v)", got, err)
	}

	if err := store.SaveDraft(id, "How ATS-friendly is"); err != nil {
		t.Fatal(err)
	}
	if got, _ := store.Draft(id); got != "How ATS-friendly is" {
		t.Errorf("expected saved draft, got %q", got)
	}

	if err := store.SaveDraft(id, ""); err != nil {
		t.Fatal(err)
	}
	path, _ := store.path(id)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected draft file removed, stat err = %v", err)
	}
	// Clearing twice is fine.
	if err := store.SaveDraft(id, ""); err != nil {
		t.Errorf("clearing an empty draft: %v", err)
	}
}

func TestDraftStoreRejectsEscapingID(t *testing.T) {
	store := NewDraftStore(t.TempDir())
	if err := store.SaveDraft("../x", "hi"); !errors.Is(err, types.ErrInvalidSessionID) {
		t.Errorf("expected ErrInvalidSessionID, got %v", err)
	}
}
