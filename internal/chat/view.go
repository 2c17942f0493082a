package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"unicode"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/user/resumechat/internal/types"
)

// Starter prompts offered while a transcript is empty.
var suggestedPrompts = []string{
	"What’s the biggest red flag?",
	"How would this resume differ for startups?",
	"Where can I show ownership or decision-making?",
	"How ATS-friendly is this resume?",
}

// View owns the controller of the session currently on screen. Opening a
// different session replaces the controller; results of loads issued for
// an earlier session are discarded when they arrive.
type View struct {
	deps   Deps
	opts   []Option
	logger *slog.Logger

	gen atomic.Uint64

	mu          sync.Mutex
	ctrl        *Controller
	attachments map[types.ArtifactKind]*types.Artifact
}

// NewView creates a View. opts are applied to every controller it creates.
func NewView(deps Deps, logger *slog.Logger, opts ...Option) *View {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Notifier == nil {
		deps.Notifier = LogNotifier(logger)
	}
	return &View{
		deps:        deps,
		opts:        append([]Option{WithLogger(logger)}, opts...),
		logger:      logger,
		attachments: make(map[types.ArtifactKind]*types.Artifact),
	}
}

// Current returns the active controller, or nil before the first Open.
func (v *View) Current() *Controller {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ctrl
}

// Open makes id the active session. It stops any turn of the previous
// controller, then loads history and both attachment slots in parallel and
// waits for them. Failures are notified, never returned.
func (v *View) Open(ctx context.Context, id types.SessionID) *Controller {
	ctrl := NewController(id, v.deps, v.opts...)

	v.mu.Lock()
	gen := v.gen.Add(1)
	old := v.ctrl
	v.ctrl = ctrl
	v.attachments = make(map[types.ArtifactKind]*types.Artifact)
	v.mu.Unlock()

	// Reopening the same session also replaces its controller, so the old
	// turn must not outlive it.
	if old != nil {
		old.Stop()
	}

	var g errgroup.Group
	g.Go(func() error {
		t, err := ctrl.fetchHistory(ctx)
		if !v.current(gen) {
			v.logger.Debug("discarding stale history", "session_id", string(id))
			return nil
		}
		ctrl.applyHistory(t, err)
		return nil
	})
	if v.deps.Attachments != nil {
		for _, kind := range types.ArtifactKinds {
			g.Go(func() error {
				v.loadAttachment(ctx, gen, id, kind)
				return nil
			})
		}
	}
	_ = g.Wait()
	return ctrl
}

func (v *View) current(gen uint64) bool {
	return v.gen.Load() == gen
}

func (v *View) loadAttachment(ctx context.Context, gen uint64, id types.SessionID, kind types.ArtifactKind) {
	a, err := v.fetchAttachment(ctx, id, kind)
	if !v.current(gen) {
		v.logger.Debug("discarding stale attachment", "session_id", string(id), "kind", kind)
		return
	}
	if err != nil {
		v.logger.Error("attachment load failed", "session_id", string(id), "kind", kind, "error", err)
		v.deps.Notifier.Notify(types.NoticeError, fmt.Sprintf("Failed to load %s", label(kind)))
		a = nil
	}
	v.setAttachment(gen, kind, a)
}

func (v *View) fetchAttachment(ctx context.Context, id types.SessionID, kind types.ArtifactKind) (*types.Artifact, error) {
	token, err := v.deps.Identity.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}
	return v.deps.Attachments.Attachment(ctx, token, id, kind)
}

// setAttachment fills a slot unless a later Open has superseded gen.
func (v *View) setAttachment(gen uint64, kind types.ArtifactKind, a *types.Artifact) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.gen.Load() != gen {
		return
	}
	if a == nil {
		delete(v.attachments, kind)
		return
	}
	v.attachments[kind] = a
}

// Attachment returns the artifact in the given slot of the active session.
func (v *View) Attachment(kind types.ArtifactKind) *types.Artifact {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.attachments[kind]
}

// UploadAttachment stores upload in the kind slot of the active session,
// replacing whatever was there.
func (v *View) UploadAttachment(ctx context.Context, kind types.ArtifactKind, upload *types.Upload) error {
	ctrl, gen := v.active()
	if ctrl == nil {
		return fmt.Errorf("no session open")
	}

	a, err := v.upload(ctx, ctrl.SessionID(), kind, upload)
	if err != nil {
		v.logger.Error("attachment upload failed", "session_id", string(ctrl.SessionID()), "kind", kind, "error", err)
		v.deps.Notifier.Notify(types.NoticeError, "Failed to upload file, please try again!")
		return err
	}
	v.setAttachment(gen, kind, a)
	v.deps.Notifier.Notify(types.NoticeSuccess, upload.Name+" uploaded successfully!")
	return nil
}

func (v *View) upload(ctx context.Context, id types.SessionID, kind types.ArtifactKind, upload *types.Upload) (*types.Artifact, error) {
	token, err := v.deps.Identity.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}
	return v.deps.Attachments.Upload(ctx, token, id, kind, upload)
}

// DeleteAttachment empties the kind slot of the active session.
func (v *View) DeleteAttachment(ctx context.Context, kind types.ArtifactKind) error {
	ctrl, gen := v.active()
	if ctrl == nil {
		return fmt.Errorf("no session open")
	}

	token, err := v.deps.Identity.Token(ctx)
	if err == nil {
		err = v.deps.Attachments.Delete(ctx, token, ctrl.SessionID(), kind)
	}
	if err != nil {
		v.logger.Error("attachment delete failed", "session_id", string(ctrl.SessionID()), "kind", kind, "error", err)
		v.deps.Notifier.Notify(types.NoticeError, fmt.Sprintf("Failed to delete %s", label(kind)))
		return err
	}
	v.setAttachment(gen, kind, nil)
	v.deps.Notifier.Notify(types.NoticeSuccess, fmt.Sprintf("%s deleted", capitalize(label(kind))))
	return nil
}

func (v *View) active() (*Controller, uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ctrl, v.gen.Load()
}

// Register upserts the principal's profile. Failures are logged only.
func (v *View) Register(ctx context.Context, p *types.Principal) {
	if v.deps.Registrar == nil || p == nil {
		return
	}
	token, err := v.deps.Identity.Token(ctx)
	if err == nil {
		err = v.deps.Registrar.Register(ctx, token, p)
	}
	if err != nil {
		v.logger.Error("failed to register user", "user_id", p.ID, "error", err)
		return
	}
	v.logger.Debug("user registered", "user_id", p.ID)
}

// SuggestedPrompts returns the starter prompts offered on an empty
// transcript.
func SuggestedPrompts() []string {
	return append([]string(nil), suggestedPrompts...)
}

func label(kind types.ArtifactKind) string {
	if kind == types.ArtifactJobDescription {
		return "job description"
	}
	return string(kind)
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
