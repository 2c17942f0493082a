// internal/state/artifact.go
package state

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/user/resumechat/internal/types"
)

// maxUpload bounds a single attachment.
const maxUpload = 10 << 20

// artifactMeta is the on-disk metadata stored next to an attachment.
type artifactMeta struct {
	Name        string    `json:"name"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// ArtifactStore keeps at most one attachment per kind per session, at
// sessions/<sessionID>/attachments/<kind>.{json,bin}. Uploading replaces the
// slot's previous content.
type ArtifactStore struct {
	root string
}

// NewArtifactStore creates a new file-backed ArtifactStore rooted at the given directory.
func NewArtifactStore(root string) *ArtifactStore {
	return &ArtifactStore{root: root}
}

// slot locates the metadata and content files of one attachment slot.
type slot struct {
	meta, data string
}

func (a *ArtifactStore) slot(id types.SessionID, kind types.ArtifactKind) (slot, error) {
	dir, err := sessionDir(a.root, id)
	if err != nil {
		return slot{}, err
	}
	dir = filepath.Join(dir, "attachments")
	return slot{
		meta: filepath.Join(dir, string(kind)+".json"),
		data: filepath.Join(dir, string(kind)+".bin"),
	}, nil
}

func readMeta(path string) (*artifactMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read attachment meta: %w", err)
	}
	var meta artifactMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("unmarshal attachment meta: %w", err)
	}
	return &meta, nil
}

// Attachment returns the artifact in a slot, or nil when it is empty.
func (a *ArtifactStore) Attachment(_ context.Context, _ string, id types.SessionID, kind types.ArtifactKind) (*types.Artifact, error) {
	sl, err := a.slot(id, kind)
	if err != nil {
		return nil, err
	}
	meta, err := readMeta(sl.meta)
	if err != nil || meta == nil {
		return nil, err
	}
	return &types.Artifact{
		URL:         "file://" + sl.data,
		Name:        meta.Name,
		ContentType: meta.ContentType,
	}, nil
}

// Upload stores the file in the slot, replacing what was there.
func (a *ArtifactStore) Upload(_ context.Context, _ string, id types.SessionID, kind types.ArtifactKind, upload *types.Upload) (*types.Artifact, error) {
	sl, err := a.slot(id, kind)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(upload.Body, maxUpload+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) > maxUpload {
		return nil, fmt.Errorf("upload exceeds %d bytes", maxUpload)
	}

	name := upload.Name
	if name == "" {
		name = string(kind)
	}
	meta := &artifactMeta{
		Name:        name,
		ContentType: upload.ContentType,
		Size:        int64(len(data)),
		UploadedAt:  time.Now(),
	}
	content, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal attachment meta: %w", err)
	}

	// Data first: a slot only appears once its metadata exists.
	if err := writeAtomic(sl.data, data); err != nil {
		return nil, fmt.Errorf("store %s: %w", kind, err)
	}
	if err := writeAtomic(sl.meta, content); err != nil {
		return nil, fmt.Errorf("store %s: %w", kind, err)
	}
	return &types.Artifact{URL: "file://" + sl.data, Name: name, ContentType: upload.ContentType}, nil
}

// Delete empties the slot. Deleting an empty slot is not an error.
func (a *ArtifactStore) Delete(_ context.Context, _ string, id types.SessionID, kind types.ArtifactKind) error {
	sl, err := a.slot(id, kind)
	if err != nil {
		return err
	}
	for _, p := range []string{sl.meta, sl.data} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("delete %s: %w", kind, err)
		}
	}
	return nil
}

// Excerpt returns up to maxChars of the slot's content when it is text,
// centred on query when query occurs in it. Binary or empty slots yield "".
func (a *ArtifactStore) Excerpt(_ context.Context, id types.SessionID, kind types.ArtifactKind, query string, maxChars int) (string, error) {
	sl, err := a.slot(id, kind)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(sl.data)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read %s: %w", kind, err)
	}
	if !utf8.Valid(data) || bytes.IndexByte(data, 0) >= 0 {
		return "", nil
	}

	raw := []rune(strings.TrimSpace(string(data)))
	if maxChars <= 0 || maxChars > len(raw) {
		maxChars = len(raw)
	}

	start := 0
	if query != "" {
		if idx := strings.Index(strings.ToLower(string(raw)), strings.ToLower(query)); idx >= 0 {
			start = utf8.RuneCountInString(string(raw)[:idx]) - maxChars/2
			start = max(start, 0)
		}
	}
	end := min(start+maxChars, len(raw))
	start = max(end-maxChars, 0)
	return string(raw[start:end]), nil
}
