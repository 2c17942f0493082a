package jobpost

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func serve(t *testing.T, contentType, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchHTML(t *testing.T) {
	srv := serve(t, "text/html; charset=utf-8", `<html><body><h1>Staff Engineer</h1><p>Own the <b>platform</b>.</p></body></html>`)

	md, err := NewFetcher(nil).Fetch(context.Background(), srv.URL+"/jobs/staff-engineer")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(md, "# Staff Engineer") {
		t.Errorf("expected markdown heading, got %q", md)
	}
	if !strings.Contains(md, "**platform**") {
		t.Errorf("expected bold text, got %q", md)
	}
}

func TestFetchPlainText(t *testing.T) {
	srv := serve(t, "text/plain", "  <not html> just text  ")

	md, err := NewFetcher(nil).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if md != "<not html> just text" {
		t.Errorf("expected passthrough, got %q", md)
	}
}

func TestFetchErrors(t *testing.T) {
	srv := serve(t, "text/html", "<html><body></body></html>")
	f := NewFetcher(nil)

	if _, err := f.Fetch(context.Background(), "ftp://example.com/job"); err == nil {
		t.Error("expected error for non-http url")
	}
	if _, err := f.Fetch(context.Background(), srv.URL+"/missing"); err == nil {
		t.Error("expected error for 404")
	}
	if _, err := f.Fetch(context.Background(), srv.URL); err == nil {
		t.Error("expected error for empty page")
	}
}

func TestFetchTruncation(t *testing.T) {
	srv := serve(t, "text/plain", strings.Repeat("é", MaxChars))

	md, err := NewFetcher(nil).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(md, truncatedMarker) {
		t.Error("expected truncation marker")
	}
	if len(md) > MaxChars+len(truncatedMarker) {
		t.Errorf("result too long: %d", len(md))
	}
	if !strings.HasPrefix(md, "é") || strings.ContainsRune(md, '�') {
		t.Error("truncation split a rune")
	}
}

func TestUpload(t *testing.T) {
	srv := serve(t, "text/html", "<p>Senior role</p>")

	up, err := NewFetcher(nil).Upload(context.Background(), srv.URL+"/careers/senior-go.html")
	if err != nil {
		t.Fatal(err)
	}
	if up.Name != "senior-go.md" {
		t.Errorf("expected senior-go.md, got %s", up.Name)
	}
	if up.ContentType != "text/markdown" {
		t.Errorf("expected text/markdown, got %s", up.ContentType)
	}
	data, _ := io.ReadAll(up.Body)
	if !strings.Contains(string(data), "Senior role") {
		t.Errorf("unexpected body %q", data)
	}
}

func TestFileName(t *testing.T) {
	tests := map[string]string{
		"https://jobs.example.com/":            "jobs.example.md",
		"https://example.com/roles/backend/":   "backend.md",
		"https://example.com/roles/123?ref=li": "123.md",
	}
	for in, want := range tests {
		if got := fileName(in); got != want {
			t.Errorf("fileName(%q) = %q, want %q", in, got, want)
		}
	}
}
