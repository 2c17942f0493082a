// internal/types/interfaces.go
package types

import (
	"context"
	"io"
)

// IdentityProvider issues a bearer credential for the current principal.
// Callers request a token before every authorized call and never cache it.
type IdentityProvider interface {
	Token(ctx context.Context) (string, error)
}

// HistoryStore returns the persisted transcript of a session. A session
// with no history yields an empty transcript and a nil error.
type HistoryStore interface {
	History(ctx context.Context, token string, sessionID SessionID) (Transcript, error)
}

// CompletionRequest is one outbound chat turn.
type CompletionRequest struct {
	SessionID SessionID
	Messages  Transcript
	Headers   map[string]string
}

// CompletionService streams the assistant's reply to a transcript. The
// returned channel is closed when the stream ends; cancelling ctx aborts
// the underlying transport.
type CompletionService interface {
	Submit(ctx context.Context, req *CompletionRequest) (<-chan Fragment, error)
}

// Upload is a file to attach to a session.
type Upload struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// AttachmentStore keeps at most one artifact per kind per session.
// Attachment returns (nil, nil) when no artifact is present.
type AttachmentStore interface {
	Attachment(ctx context.Context, token string, sessionID SessionID, kind ArtifactKind) (*Artifact, error)
	Upload(ctx context.Context, token string, sessionID SessionID, kind ArtifactKind, upload *Upload) (*Artifact, error)
	Delete(ctx context.Context, token string, sessionID SessionID, kind ArtifactKind) error
}

// Registrar upserts the authenticated principal's profile.
type Registrar interface {
	Register(ctx context.Context, token string, principal *Principal) error
}

type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeSuccess NoticeLevel = "success"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notifier surfaces non-blocking, user-visible notifications.
type Notifier interface {
	Notify(level NoticeLevel, text string)
}
