package chat

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/user/resumechat/internal/types"
)

type staticIdentity struct {
	token string
	err   error
}

func (s staticIdentity) Token(context.Context) (string, error) { return s.token, s.err }

// fakeHistory serves canned transcripts per session. A session with a gate
// blocks until the gate is closed.
type fakeHistory struct {
	mu    sync.Mutex
	data  map[types.SessionID]types.Transcript
	gates map[types.SessionID]chan struct{}
	err   error
	calls int
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{
		data:  make(map[types.SessionID]types.Transcript),
		gates: make(map[types.SessionID]chan struct{}),
	}
}

func (h *fakeHistory) History(ctx context.Context, _ string, id types.SessionID) (types.Transcript, error) {
	h.mu.Lock()
	h.calls++
	gate := h.gates[id]
	h.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return nil, h.err
	}
	return h.data[id].Clone(), nil
}

// fakeCompletions hands each submission a channel the test drives.
type fakeCompletions struct {
	mu       sync.Mutex
	err      error
	requests []*types.CompletionRequest
	streams  []chan types.Fragment
}

func (f *fakeCompletions) Submit(_ context.Context, req *types.CompletionRequest) (<-chan types.Fragment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan types.Fragment)
	f.streams = append(f.streams, ch)
	return ch, nil
}

func (f *fakeCompletions) stream(i int) chan types.Fragment {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streams[i]
}

func (f *fakeCompletions) submitted() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type notice struct {
	level types.NoticeLevel
	text  string
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []notice
}

func (r *recordingNotifier) Notify(level types.NoticeLevel, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, notice{level, text})
}

func (r *recordingNotifier) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.notices))
	for _, n := range r.notices {
		out = append(out, n.text)
	}
	return out
}

type recordingSink struct {
	mu    sync.Mutex
	saved map[types.SessionID]types.Transcript
}

func (s *recordingSink) Replace(_ context.Context, id types.SessionID, t types.Transcript) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved == nil {
		s.saved = make(map[types.SessionID]types.Transcript)
	}
	s.saved[id] = t
	return nil
}

func (s *recordingSink) get(id types.SessionID) types.Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved[id]
}

// fakeAttachments serves slots shared by every session unless a session has
// its own entry in bySession. Loads for a session with a gate block until
// the gate is closed, then fail with that session's entry in loadErrs.
type fakeAttachments struct {
	mu        sync.Mutex
	slots     map[types.ArtifactKind]*types.Artifact
	bySession map[types.SessionID]map[types.ArtifactKind]*types.Artifact
	gates     map[types.SessionID]chan struct{}
	loadErrs  map[types.SessionID]error
	loadErr   error
	upErr     error
	delErr    error
	calls     int
}

func (a *fakeAttachments) Attachment(ctx context.Context, _ string, id types.SessionID, kind types.ArtifactKind) (*types.Artifact, error) {
	a.mu.Lock()
	a.calls++
	gate := a.gates[id]
	a.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.loadErrs[id]; err != nil {
		return nil, err
	}
	if a.loadErr != nil {
		return nil, a.loadErr
	}
	if slots, ok := a.bySession[id]; ok {
		return slots[kind], nil
	}
	return a.slots[kind], nil
}

func (a *fakeAttachments) loads() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func (a *fakeAttachments) Upload(_ context.Context, _ string, id types.SessionID, kind types.ArtifactKind, up *types.Upload) (*types.Artifact, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.upErr != nil {
		return nil, a.upErr
	}
	if _, err := io.ReadAll(up.Body); err != nil {
		return nil, err
	}
	art := &types.Artifact{URL: "/api/" + string(kind) + "/" + string(id), Name: up.Name, ContentType: up.ContentType}
	if a.slots == nil {
		a.slots = make(map[types.ArtifactKind]*types.Artifact)
	}
	a.slots[kind] = art
	return art, nil
}

func (a *fakeAttachments) Delete(_ context.Context, _ string, _ types.SessionID, kind types.ArtifactKind) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.delErr != nil {
		return a.delErr
	}
	delete(a.slots, kind)
	return nil
}

type fakeRegistrar struct {
	err   error
	calls []*types.Principal
}

func (r *fakeRegistrar) Register(_ context.Context, token string, p *types.Principal) error {
	if token == "" {
		return errors.New("missing token")
	}
	r.calls = append(r.calls, p)
	return r.err
}

// rateLimitErr mimics a transport error that knows it was throttled.
type rateLimitErr struct{}

func (rateLimitErr) Error() string     { return "status 429" }
func (rateLimitErr) RateLimited() bool { return true }

func userMsg(id, text string) types.Message {
	return types.Message{ID: types.MessageID(id), Role: types.RoleUser, Parts: []types.Part{types.TextPart(text)}}
}

func assistantMsg(id, text string) types.Message {
	return types.Message{ID: types.MessageID(id), Role: types.RoleAssistant, Parts: []types.Part{types.TextPart(text)}}
}

type memDrafts struct {
	mu     sync.Mutex
	drafts map[types.SessionID]string
	saves  int
}

func (m *memDrafts) Draft(id types.SessionID) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drafts[id], nil
}

func (m *memDrafts) SaveDraft(id types.SessionID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.drafts == nil {
		m.drafts = make(map[types.SessionID]string)
	}
	m.saves++
	if text == "" {
		delete(m.drafts, id)
		return nil
	}
	m.drafts[id] = text
	return nil
}
