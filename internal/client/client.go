// Package client talks to the resume-review backend over HTTP. One Client
// implements history, completion streaming, attachments and registration.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/user/resumechat/internal/stream"
	"github.com/user/resumechat/internal/types"
)

const (
	maxErrorBody  = 64 << 10
	rateLimitText = "Too many requests"
)

// StatusError is returned for non-2xx responses. Body holds the (truncated)
// response body, which carries the server's error detail.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Body)
}

// RateLimited reports whether the server throttled the request.
func (e *StatusError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests || strings.Contains(e.Body, rateLimitText)
}

// Client implements the backend collaborators.
type Client struct {
	baseURL    string
	httpClient *http.Client
	// streams have no overall timeout; cancellation comes from the context.
	streamClient *http.Client
	retry        *RetryPolicy
	logger       *slog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces both the request and the streaming HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
		c.streamClient = hc
	}
}

// WithTimeout bounds non-streaming requests.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient = &http.Client{Timeout: d} }
}

func WithRetryPolicy(p *RetryPolicy) Option {
	return func(c *Client) { c.retry = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the backend at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		streamClient: &http.Client{},
		retry:        DefaultRetryPolicy(),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// historyResponse is the body of GET /api/chat/history/{id}.
type historyResponse struct {
	Messages types.Transcript `json:"messages"`
}

// History returns the persisted transcript of a session.
func (c *Client) History(ctx context.Context, token string, id types.SessionID) (types.Transcript, error) {
	var resp historyResponse
	if err := c.getJSON(ctx, token, "/api/chat/history/"+url.PathEscape(string(id)), &resp); err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	if resp.Messages == nil {
		resp.Messages = types.Transcript{}
	}
	return resp.Messages, nil
}

// chatRequest is the body of POST /api/chat.
type chatRequest struct {
	ID       types.SessionID  `json:"id"`
	Messages types.Transcript `json:"messages"`
}

// Submit posts the transcript and streams the reply. The response body is
// closed once the stream ends or ctx is cancelled.
func (c *Client) Submit(ctx context.Context, req *types.CompletionRequest) (<-chan types.Fragment, error) {
	body, err := json.Marshal(chatRequest{ID: req.SessionID, Messages: req.Messages})
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.streamClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	if err := checkStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	if resp.Header.Get(stream.HeaderProtocol) == "" {
		c.logger.Debug("response lacks stream protocol header", "session_id", string(req.SessionID))
	}

	in := stream.Decode(ctx, resp.Body)
	out := make(chan types.Fragment)
	go func() {
		defer close(out)
		defer resp.Body.Close()
		for f := range in {
			select {
			case out <- f:
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}

// fileInfo is the body of GET /api/{kind}/{id}.
type fileInfo struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
}

// Attachment returns the artifact in a slot, or nil when the slot is empty.
func (c *Client) Attachment(ctx context.Context, token string, id types.SessionID, kind types.ArtifactKind) (*types.Artifact, error) {
	path := artifactPath(kind, id)

	var info fileInfo
	err := c.getJSON(ctx, token, path, &info)
	if se, ok := asStatus(err); ok && se.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", kind, err)
	}
	return &types.Artifact{URL: c.baseURL + path, Name: info.Name, ContentType: info.ContentType}, nil
}

// Upload sends a file as multipart form data with fields "file" and "uuid".
func (c *Client) Upload(ctx context.Context, token string, id types.SessionID, kind types.ArtifactKind, upload *types.Upload) (*types.Artifact, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	contentType := upload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, upload.Name))
	h.Set("Content-Type", contentType)
	fw, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(fw, upload.Body); err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if err := mw.WriteField("uuid", string(id)); err != nil {
		return nil, fmt.Errorf("write form field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/"+string(kind)+"/upload", token, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	if err := c.do(req, nil); err != nil {
		return nil, fmt.Errorf("upload %s: %w", kind, err)
	}
	return &types.Artifact{
		URL:         c.baseURL + artifactPath(kind, id),
		Name:        upload.Name,
		ContentType: contentType,
	}, nil
}

// Delete empties a slot.
func (c *Client) Delete(ctx context.Context, token string, id types.SessionID, kind types.ArtifactKind) error {
	req, err := c.newRequest(ctx, http.MethodDelete, artifactPath(kind, id), token, nil)
	if err != nil {
		return err
	}
	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}
	return nil
}

// registerResponse is the body of POST /api/users/register. The endpoint
// answers 200 with status "error" for rejected registrations.
type registerResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Register upserts the principal, retrying transient failures.
func (c *Client) Register(ctx context.Context, token string, p *types.Principal) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal principal: %w", err)
	}

	attempt := 0
	err = c.retry.Execute(ctx, func() error {
		attempt++
		req, err := c.newRequest(ctx, http.MethodPost, "/api/users/register", token, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		var resp registerResponse
		if err := c.do(req, &resp); err != nil {
			c.logger.Debug("register attempt failed", "attempt", attempt, "error", err)
			return err
		}
		if resp.Status == "error" {
			return fmt.Errorf("invalid registration: %s", resp.Message)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("register user: %w", err)
	}
	return nil
}

// Health checks GET /api/health.
func (c *Client) Health(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/health", "", nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

func (c *Client) getJSON(ctx context.Context, token, path string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, token, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path, token string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// do sends req and decodes a JSON body into out when out is non-nil.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

func asStatus(err error) (*StatusError, bool) {
	var se *StatusError
	ok := errors.As(err, &se)
	return se, ok
}

func artifactPath(kind types.ArtifactKind, id types.SessionID) string {
	return "/api/" + string(kind) + "/" + url.PathEscape(string(id))
}
