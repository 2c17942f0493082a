// Package chat owns the live transcript of a chat session: it seeds it from
// persisted history, appends user turns, applies streamed assistant output
// and sanitizes the result when a turn ends or is stopped.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/user/resumechat/internal/transcript"
	"github.com/user/resumechat/internal/types"
)

var (
	// ErrBusy is returned when a turn is submitted while another is in flight.
	ErrBusy = errors.New("a response is still in progress")
	// ErrEmptyInput is returned when the input is blank after trimming.
	ErrEmptyInput = errors.New("input is empty")
)

// User-visible notification texts.
const (
	MsgHistoryFailed = "Failed to load chat history"
	MsgBusy          = "Please wait for the model to finish its response!"
	MsgRateLimited   = "You are sending too many messages. Please try again later."
	MsgStreamFailed  = "Something went wrong. Please try again."
)

const rateLimitMarker = "Too many requests"

// Deps are the collaborators a Controller or View talks to.
type Deps struct {
	Identity    types.IdentityProvider
	History     types.HistoryStore
	Completions types.CompletionService
	Attachments types.AttachmentStore
	Registrar   types.Registrar
	Notifier    types.Notifier
}

// TranscriptSink receives the sanitized transcript after every turn.
type TranscriptSink interface {
	Replace(ctx context.Context, sessionID types.SessionID, t types.Transcript) error
}

// Meter estimates the size of a transcript sent as context.
type Meter interface {
	Count(t types.Transcript) int
}

// DraftStore keeps the unsent input of each session.
type DraftStore interface {
	Draft(sessionID types.SessionID) (string, error)
	SaveDraft(sessionID types.SessionID, text string) error
}

// Snapshot is a point-in-time copy of the controller state.
type Snapshot struct {
	SessionID types.SessionID
	Messages  types.Transcript
	Status    types.Status
	Loading   bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger; the session id is added to every record.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithOnUpdate registers an observer called after every state change.
// Calls are serialized.
func WithOnUpdate(fn func(Snapshot)) Option {
	return func(c *Controller) { c.onUpdate = fn }
}

// WithSink mirrors the transcript to s when a turn ends or is stopped.
func WithSink(s TranscriptSink) Option {
	return func(c *Controller) { c.sink = s }
}

// WithMeter logs the estimated context size of each submission.
func WithMeter(m Meter) Option {
	return func(c *Controller) { c.meter = m }
}

// WithDrafts restores the input from d on creation and saves it on every
// change.
func WithDrafts(d DraftStore) Option {
	return func(c *Controller) { c.drafts = d }
}

// turn tracks one in-flight submission.
type turn struct {
	cancel    context.CancelFunc
	done      chan struct{}
	assistant int
	textParts map[string]int
	toolParts map[string]int
	err       error
}

// Controller holds the transcript of exactly one session. It is created per
// session and discarded when the session changes.
type Controller struct {
	id       types.SessionID
	deps     Deps
	logger   *slog.Logger
	onUpdate func(Snapshot)
	sink     TranscriptSink
	meter    Meter
	drafts   DraftStore

	mu       sync.Mutex
	messages types.Transcript
	history  types.Transcript
	loading  bool
	seeded   bool
	status   types.Status
	input    string
	turn     *turn

	emitMu sync.Mutex
}

// NewController creates a controller for one session. It starts in the
// loading state until history has been applied.
func NewController(id types.SessionID, deps Deps, opts ...Option) *Controller {
	c := &Controller{
		id:      id,
		deps:    deps,
		logger:  slog.Default(),
		loading: true,
		status:  types.StatusIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.deps.Notifier == nil {
		c.deps.Notifier = LogNotifier(c.logger)
	}
	c.logger = c.logger.With("session_id", string(id))
	if c.drafts != nil {
		draft, err := c.drafts.Draft(id)
		if err != nil {
			c.logger.Warn("restore draft failed", "error", err)
		}
		c.input = draft
	}
	return c
}

func (c *Controller) SessionID() types.SessionID { return c.id }

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		SessionID: c.id,
		Messages:  c.messages.Clone(),
		Status:    c.status,
		Loading:   c.loading,
	}
}

func (c *Controller) Messages() types.Transcript { return c.Snapshot().Messages }

func (c *Controller) Status() types.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

func (c *Controller) SetInput(s string) {
	c.mu.Lock()
	changed := c.input != s
	c.input = s
	c.mu.Unlock()

	if c.drafts != nil && changed {
		if err := c.drafts.SaveDraft(c.id, s); err != nil {
			c.logger.Warn("save draft failed", "error", err)
		}
	}
}

func (c *Controller) Input() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

// LoadHistory fetches and applies the persisted transcript. Failures are
// surfaced through the notifier and leave an empty history.
func (c *Controller) LoadHistory(ctx context.Context) {
	t, err := c.fetchHistory(ctx)
	c.applyHistory(t, err)
}

func (c *Controller) fetchHistory(ctx context.Context) (types.Transcript, error) {
	token, err := c.deps.Identity.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}
	t, err := c.deps.History.History(ctx, token, c.id)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return t, nil
}

func (c *Controller) applyHistory(t types.Transcript, err error) {
	if err != nil {
		c.logger.Error("history load failed", "error", err)
		c.deps.Notifier.Notify(types.NoticeError, MsgHistoryFailed)
		t = nil
	}
	if t == nil {
		t = types.Transcript{}
	}

	c.mu.Lock()
	c.history = t
	c.loading = false
	// Seed live state once, and only if nothing has happened there yet.
	if !c.seeded && len(c.messages) == 0 && len(t) > 0 {
		c.messages = t.Clone()
		c.seeded = true
	}
	c.mu.Unlock()

	c.logger.Debug("history applied", "messages", len(t))
	c.emit()
}

// Submit sends the current input as a user turn. Blank input is a no-op
// returning ErrEmptyInput. While a turn is in flight the call is rejected
// with a notification and ErrBusy. Other failures are notified before being
// returned.
func (c *Controller) Submit(ctx context.Context) error {
	return c.send(ctx, c.Input(), true)
}

// SubmitText sends text as a user turn without touching the input buffer.
func (c *Controller) SubmitText(ctx context.Context, text string) error {
	return c.send(ctx, text, false)
}

func (c *Controller) send(ctx context.Context, text string, fromInput bool) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyInput
	}

	c.mu.Lock()
	if c.status.InFlight() {
		c.mu.Unlock()
		c.deps.Notifier.Notify(types.NoticeWarning, MsgBusy)
		return ErrBusy
	}
	turnCtx, cancel := context.WithCancel(ctx)
	t := &turn{
		cancel:    cancel,
		done:      make(chan struct{}),
		assistant: -1,
		textParts: make(map[string]int),
		toolParts: make(map[string]int),
	}
	c.turn = t
	c.status = types.StatusSubmitted
	c.mu.Unlock()
	c.emit()

	token, err := c.deps.Identity.Token(turnCtx)
	if err != nil {
		err = fmt.Errorf("get token: %w", err)
		c.fail(t, err)
		return err
	}

	c.mu.Lock()
	if c.turn != t {
		// Stopped while waiting for the token.
		c.mu.Unlock()
		close(t.done)
		return nil
	}
	c.messages = append(c.messages, types.Message{
		ID:    types.NewMessageID(),
		Role:  types.RoleUser,
		Parts: []types.Part{types.TextPart(text)},
	})
	req := &types.CompletionRequest{
		SessionID: c.id,
		Messages:  c.messages.Clone(),
		Headers: map[string]string{
			"Authorization": "Bearer " + token,
			"Content-Type":  "application/json",
		},
	}
	c.mu.Unlock()
	c.emit()

	if c.meter != nil {
		c.logger.Debug("submitting turn", "messages", len(req.Messages), "context_tokens", c.meter.Count(req.Messages))
	}

	frags, err := c.deps.Completions.Submit(turnCtx, req)
	if fromInput {
		c.SetInput("")
	}
	if err != nil {
		err = fmt.Errorf("submit turn: %w", err)
		c.fail(t, err)
		return err
	}

	go c.consume(t, frags)
	return nil
}

func (c *Controller) fail(t *turn, err error) {
	t.err = err
	c.finish(t)
	close(t.done)
}

func (c *Controller) consume(t *turn, frags <-chan types.Fragment) {
	defer close(t.done)

	for f := range frags {
		c.mu.Lock()
		if c.turn != t {
			// Stopped: drain whatever the transport still delivers.
			c.mu.Unlock()
			continue
		}
		end := c.apply(t, f)
		c.mu.Unlock()
		c.emit()
		if end {
			break
		}
	}
	c.finish(t)

	// Release the transport if we broke out early.
	t.cancel()
	for range frags {
	}
}

// apply mutates the in-flight assistant message for one fragment. It
// reports whether the fragment ends the turn. Caller must hold c.mu.
func (c *Controller) apply(t *turn, f types.Fragment) bool {
	if c.status == types.StatusSubmitted {
		c.status = types.StatusStreaming
	}

	switch f.Type {
	case types.FragmentStart:
		c.assistantMessage(t, f.MessageID)

	case types.FragmentTextStart:
		msg := c.assistantMessage(t, "")
		msg.Parts = append(msg.Parts, types.TextPart(""))
		t.textParts[f.ID] = len(msg.Parts) - 1

	case types.FragmentTextDelta:
		msg := c.assistantMessage(t, "")
		i, ok := t.textParts[f.ID]
		if !ok {
			msg.Parts = append(msg.Parts, types.TextPart(""))
			i = len(msg.Parts) - 1
			t.textParts[f.ID] = i
		}
		msg.Parts[i].Text += f.Delta

	case types.FragmentToolInputStart:
		msg := c.assistantMessage(t, "")
		msg.Parts = append(msg.Parts, types.ToolPart(f.ToolName, f.ToolCallID, types.ToolInputStreaming))
		t.toolParts[f.ToolCallID] = len(msg.Parts) - 1

	case types.FragmentToolInputAvailable:
		p := c.toolPart(t, f)
		p.State = types.ToolInputAvailable
		p.Input = f.Input

	case types.FragmentToolOutputAvailable:
		p := c.toolPart(t, f)
		p.State = types.ToolOutputAvailable
		p.Output = f.Output

	case types.FragmentToolOutputError:
		p := c.toolPart(t, f)
		p.State = types.ToolOutputError
		p.ErrorText = f.ErrorText

	case types.FragmentError:
		t.err = errors.New(f.ErrorText)
		return true

	case types.FragmentFinish:
		return true
	}
	return false
}

func (c *Controller) assistantMessage(t *turn, id types.MessageID) *types.Message {
	if t.assistant < 0 {
		if id == "" {
			id = types.NewMessageID()
		}
		c.messages = append(c.messages, types.Message{ID: id, Role: types.RoleAssistant})
		t.assistant = len(c.messages) - 1
	}
	return &c.messages[t.assistant]
}

func (c *Controller) toolPart(t *turn, f types.Fragment) *types.Part {
	msg := c.assistantMessage(t, "")
	i, ok := t.toolParts[f.ToolCallID]
	if !ok {
		msg.Parts = append(msg.Parts, types.ToolPart(f.ToolName, f.ToolCallID, types.ToolInputStreaming))
		i = len(msg.Parts) - 1
		t.toolParts[f.ToolCallID] = i
	}
	return &msg.Parts[i]
}

// finish ends t if it is still the active turn.
func (c *Controller) finish(t *turn) {
	c.mu.Lock()
	if c.turn != t {
		c.mu.Unlock()
		return
	}
	c.turn = nil
	c.status = types.StatusIdle
	c.messages = transcript.Sanitize(c.messages)
	final := c.messages.Clone()
	c.mu.Unlock()

	if t.err != nil {
		c.logger.Error("turn failed", "error", t.err)
		c.deps.Notifier.Notify(types.NoticeError, describeError(t.err))
	}
	c.emit()
	c.persist(final)
}

// Stop aborts the in-flight turn without waiting for the transport, returns
// to idle and sanitizes the transcript so no half-formed assistant turn
// remains.
func (c *Controller) Stop() {
	c.mu.Lock()
	t := c.turn
	c.turn = nil
	c.status = types.StatusIdle
	c.messages = transcript.Sanitize(c.messages)
	final := c.messages.Clone()
	c.mu.Unlock()

	if t != nil {
		t.cancel()
		c.logger.Info("turn stopped")
	}
	c.emit()
	if t != nil {
		c.persist(final)
	}
}

// Wait blocks until the in-flight turn, if any, has ended.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	t := c.turn
	c.mu.Unlock()
	if t == nil {
		return nil
	}
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) persist(t types.Transcript) {
	if c.sink == nil {
		return
	}
	if err := c.sink.Replace(context.Background(), c.id, t); err != nil {
		c.logger.Warn("persist transcript failed", "error", err)
	}
}

func (c *Controller) emit() {
	if c.onUpdate == nil {
		return
	}
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	c.onUpdate(c.Snapshot())
}

// rateLimited is implemented by transport errors that know their cause.
type rateLimited interface {
	RateLimited() bool
}

func describeError(err error) string {
	var rl rateLimited
	if errors.As(err, &rl) && rl.RateLimited() {
		return MsgRateLimited
	}
	if strings.Contains(err.Error(), rateLimitMarker) {
		return MsgRateLimited
	}
	return MsgStreamFailed
}
