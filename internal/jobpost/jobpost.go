// Package jobpost turns a job posting URL into a markdown job description.
package jobpost

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/user/resumechat/internal/types"
)

const (
	// MaxChars bounds the converted markdown.
	MaxChars = 50000
	maxBody  = 5 << 20

	truncatedMarker = "\n\n[Content truncated]"
)

// Fetcher downloads job postings.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a Fetcher. A nil client gets a 30s timeout default.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Fetcher{client: client}
}

// Fetch GETs rawURL and returns its content as markdown. Plain text and
// markdown responses are passed through unconverted.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("invalid job posting url: %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "resumechat/1.0")
	req.Header.Set("Accept", "text/html, text/markdown;q=0.9, text/plain;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch job posting: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch job posting: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	md := string(body)
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType != "text/plain" && mediaType != "text/markdown" {
		md, err = htmltomarkdown.ConvertString(md)
		if err != nil {
			return "", fmt.Errorf("convert to markdown: %w", err)
		}
	}

	md = strings.TrimSpace(md)
	if md == "" {
		return "", fmt.Errorf("job posting at %s has no text", u.Host)
	}
	return truncate(md), nil
}

// Upload fetches rawURL and packages it as a markdown attachment.
func (f *Fetcher) Upload(ctx context.Context, rawURL string) (*types.Upload, error) {
	md, err := f.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return &types.Upload{
		Name:        fileName(rawURL),
		ContentType: "text/markdown",
		Body:        strings.NewReader(md),
	}, nil
}

func truncate(md string) string {
	if len(md) <= MaxChars {
		return md
	}
	cut := MaxChars
	// Back up to a rune boundary.
	for cut > 0 && !isRuneStart(md[cut]) {
		cut--
	}
	return md[:cut] + truncatedMarker
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

// fileName derives an attachment name from the posting URL.
func fileName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "job-description.md"
	}
	base := path.Base(strings.TrimSuffix(u.Path, "/"))
	if base == "" || base == "." || base == "/" {
		base = u.Hostname()
	}
	base = strings.TrimSuffix(base, path.Ext(base))
	if base == "" {
		return "job-description.md"
	}
	return base + ".md"
}
