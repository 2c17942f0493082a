// internal/devserver/server.go
package devserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/user/resumechat/internal/auth"
	"github.com/user/resumechat/internal/state"
	"github.com/user/resumechat/internal/stream"
	"github.com/user/resumechat/internal/types"
)

const (
	maxChatBody   = 1 << 20
	maxUploadBody = 12 << 20
	excerptChars  = 160
)

// Server is a local implementation of the backend REST and streaming
// contract, backed by the file stores in internal/state.
type Server struct {
	sessions    *state.SessionStore
	transcripts *state.TranscriptStore
	artifacts   *state.ArtifactStore
	token       string
	wordDelay   time.Duration
	logger      *slog.Logger
	mux         *http.ServeMux

	limit    rate.Limit
	burst    int
	mu       sync.Mutex
	limiters map[types.SessionID]*rate.Limiter
	users    map[string]*types.Principal
}

type Option func(*Server)

// WithToken requires every API call except health to carry this bearer token.
func WithToken(token string) Option {
	return func(s *Server) { s.token = token }
}

// WithWordDelay paces streamed words.
func WithWordDelay(d time.Duration) Option {
	return func(s *Server) { s.wordDelay = d }
}

// WithRateLimit caps chat turns per session.
func WithRateLimit(perMinute, burst int) Option {
	return func(s *Server) {
		s.limit = rate.Limit(float64(perMinute) / 60)
		s.burst = burst
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a Server storing its data under root.
func New(root string, opts ...Option) *Server {
	s := &Server{
		sessions:    state.NewSessionStore(root),
		transcripts: state.NewTranscriptStore(root),
		artifacts:   state.NewArtifactStore(root),
		wordDelay:   30 * time.Millisecond,
		logger:      slog.Default(),
		mux:         http.NewServeMux(),
		limit:       rate.Inf,
		limiters:    make(map[types.SessionID]*rate.Limiter),
		users:       make(map[string]*types.Principal),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/chat/history/{id}", s.authorized(s.handleHistory))
	s.mux.HandleFunc("POST /api/chat", s.authorized(s.handleChat))
	s.mux.HandleFunc("POST /api/{kind}/upload", s.authorized(s.handleUpload))
	s.mux.HandleFunc("GET /api/{kind}/{id}", s.authorized(s.handleGetArtifact))
	s.mux.HandleFunc("DELETE /api/{kind}/{id}", s.authorized(s.handleDeleteArtifact))
	s.mux.HandleFunc("POST /api/users/register", s.authorized(s.handleRegister))
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// User returns a registered principal, for inspection.
func (s *Server) User(id string) *types.Principal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id]
}

func (s *Server) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" && r.Header.Get("Authorization") != "Bearer "+s.token {
			writeDetail(w, http.StatusUnauthorized, "Invalid or missing authentication token")
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeDetail writes an error body in the {"detail": ...} shape.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := types.SessionID(r.PathValue("id"))
	if !validID(w, id) {
		return
	}
	t, err := s.transcripts.History(r.Context(), "", id)
	if err != nil {
		s.logger.Error("load history failed", "session_id", id, "error", err)
		writeDetail(w, http.StatusInternalServerError, "Error fetching chat history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": t})
}

// chatRequest is the body of POST /api/chat.
type chatRequest struct {
	ID       types.SessionID  `json:"id"`
	Messages types.Transcript `json:"messages"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody)).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.Messages) == 0 {
		writeDetail(w, http.StatusBadRequest, "No messages provided")
		return
	}
	prompt := strings.TrimSpace(req.Messages[len(req.Messages)-1].Text())
	if prompt == "" {
		writeDetail(w, http.StatusBadRequest, "No message content found")
		return
	}
	if req.ID == "" {
		req.ID = types.NewSessionID()
	}
	if !validID(w, req.ID) {
		return
	}
	if !s.allow(req.ID) {
		writeDetail(w, http.StatusTooManyRequests, "Too many requests")
		return
	}

	ctx := r.Context()
	user := types.Message{ID: types.NewMessageID(), Role: types.RoleUser, Parts: []types.Part{types.TextPart(prompt)}}
	if err := s.transcripts.Append(ctx, req.ID, user); err != nil {
		s.logger.Error("persist user message failed", "session_id", req.ID, "error", err)
		writeDetail(w, http.StatusInternalServerError, "Error saving message")
		return
	}
	if _, err := s.sessions.Touch(ctx, req.ID, ""); err != nil {
		s.logger.Warn("touch session failed", "session_id", req.ID, "error", err)
	}

	resume, err := s.artifacts.Attachment(ctx, "", req.ID, types.ArtifactResume)
	if err != nil {
		s.logger.Error("load resume failed", "session_id", req.ID, "error", err)
		writeDetail(w, http.StatusInternalServerError, "Error loading resume")
		return
	}

	stream.SetHeaders(w.Header())
	w.WriteHeader(http.StatusOK)
	enc := stream.NewEncoder(w)

	var reply types.Message
	if resume == nil {
		s.logger.Info("resume not found, requesting upload", "session_id", req.ID)
		reply, err = s.streamText(ctx, enc, resumeRequiredText)
	} else {
		reply, err = s.streamReview(ctx, enc, req.ID, resume, prompt)
	}
	if err != nil {
		s.logger.Warn("stream ended early", "session_id", req.ID, "error", err)
		return
	}
	if err := s.transcripts.Append(context.WithoutCancel(ctx), req.ID, reply); err != nil {
		s.logger.Error("persist reply failed", "session_id", req.ID, "error", err)
	}
}

func (s *Server) allow(id types.SessionID) bool {
	if s.limit == rate.Inf {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[id]
	if !ok {
		l = rate.NewLimiter(s.limit, s.burst)
		s.limiters[id] = l
	}
	return l.Allow()
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	kind, ok := artifactKind(r.PathValue("kind"))
	if !ok {
		http.NotFound(w, r)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(maxUploadBody); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "file is required")
		return
	}
	defer f.Close()

	id := types.SessionID(r.FormValue("uuid"))
	if id == "" {
		id = types.NewSessionID()
	}
	if !validID(w, id) {
		return
	}

	_, err = s.artifacts.Upload(r.Context(), "", id, kind, &types.Upload{
		Name:        hdr.Filename,
		ContentType: hdr.Header.Get("Content-Type"),
		Body:        f,
	})
	if err != nil {
		s.logger.Error("store upload failed", "session_id", id, "kind", kind, "error", err)
		writeDetail(w, http.StatusInternalServerError, fmt.Sprintf("Error uploading file: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": kindTitle(kind) + " uploaded successfully!"})
}

func (s *Server) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	kind, ok := artifactKind(r.PathValue("kind"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	id := types.SessionID(r.PathValue("id"))
	if !validID(w, id) {
		return
	}

	a, err := s.artifacts.Attachment(r.Context(), "", id, kind)
	if err != nil {
		s.logger.Error("load attachment failed", "session_id", id, "kind", kind, "error", err)
		writeDetail(w, http.StatusInternalServerError, "Error loading file")
		return
	}
	if a == nil {
		writeDetail(w, http.StatusNotFound, kindTitle(kind)+" not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"name": a.Name, "contentType": a.ContentType})
}

func (s *Server) handleDeleteArtifact(w http.ResponseWriter, r *http.Request) {
	kind, ok := artifactKind(r.PathValue("kind"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	id := types.SessionID(r.PathValue("id"))
	if !validID(w, id) {
		return
	}

	if err := s.artifacts.Delete(r.Context(), "", id, kind); err != nil {
		s.logger.Error("delete attachment failed", "session_id", id, "kind", kind, "error", err)
		writeDetail(w, http.StatusInternalServerError, fmt.Sprintf("Error deleting %s: %v", kind, err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": kindTitle(kind) + " deleted successfully!"})
}

// registerResponse mirrors the backend's registration reply, which is 200
// even when the registration is rejected.
type registerResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var p types.Principal
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody)).Decode(&p); err != nil || p.ID == "" {
		writeDetail(w, http.StatusBadRequest, "invalid registration")
		return
	}

	// When the credential is a JWT its subject must match the profile.
	bearer := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if claimed, err := auth.PrincipalFromToken(bearer); err == nil && claimed.ID != p.ID {
		writeJSON(w, http.StatusOK, registerResponse{
			Status:  "error",
			Message: "User ID mismatch with authentication token",
			UserID:  p.ID,
		})
		return
	}

	s.mu.Lock()
	s.users[p.ID] = &p
	s.mu.Unlock()

	s.logger.Info("user registered", "user_id", p.ID)
	writeJSON(w, http.StatusOK, registerResponse{Status: "success", Message: "User registered successfully", UserID: p.ID})
}

// validID writes a 400 and reports false when id cannot name a session.
func validID(w http.ResponseWriter, id types.SessionID) bool {
	if err := id.Validate(); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid session id")
		return false
	}
	return true
}

func artifactKind(s string) (types.ArtifactKind, bool) {
	kind := types.ArtifactKind(s)
	return kind, slices.Contains(types.ArtifactKinds, kind)
}

func kindTitle(kind types.ArtifactKind) string {
	if kind == types.ArtifactJobDescription {
		return "Job description"
	}
	return "Resume"
}
