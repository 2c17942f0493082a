// Package stream implements the UI message stream protocol: server-sent
// events whose data lines carry one JSON fragment each, terminated by
// "data: [DONE]".
package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/user/resumechat/internal/types"
)

const (
	// HeaderProtocol marks responses speaking this protocol.
	HeaderProtocol = "x-vercel-ai-ui-message-stream"
	ProtocolV1     = "v1"

	doneSentinel = "[DONE]"
	maxFrameSize = 1 << 20
)

// SetHeaders applies the response headers a streaming endpoint sends.
func SetHeaders(h http.Header) {
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	h.Set(HeaderProtocol, ProtocolV1)
}

// Decode reads frames from r on a background goroutine and delivers them in
// order. The channel is closed at [DONE], at EOF, after a malformed frame
// (reported as an error fragment), or when ctx is cancelled.
func Decode(ctx context.Context, r io.Reader) <-chan types.Fragment {
	out := make(chan types.Fragment, 16)

	go func() {
		defer close(out)

		send := func(f types.Fragment) bool {
			select {
			case out <- f:
				return true
			case <-ctx.Done():
				return false
			}
		}

		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" || strings.HasPrefix(line, ":") {
				continue
			}
			if !strings.HasPrefix(line, "data:") {
				// event:, id: and retry: fields carry nothing we use.
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == doneSentinel {
				return
			}

			var f types.Fragment
			if err := json.Unmarshal([]byte(data), &f); err != nil {
				send(types.Fragment{
					Type:      types.FragmentError,
					ErrorText: fmt.Sprintf("decode stream frame: %v", err),
				})
				return
			}
			if !send(f) {
				return
			}
		}

		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			send(types.Fragment{
				Type:      types.FragmentError,
				ErrorText: fmt.Sprintf("read stream: %v", err),
			})
		}
	}()

	return out
}

// Encoder writes fragments as server-sent events, flushing after each
// frame when the writer supports it.
type Encoder struct {
	w       io.Writer
	flusher http.Flusher
}

func NewEncoder(w io.Writer) *Encoder {
	f, _ := w.(http.Flusher)
	return &Encoder{w: w, flusher: f}
}

// Encode writes one fragment.
func (e *Encoder) Encode(f types.Fragment) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal fragment: %w", err)
	}
	return e.writeData(string(data))
}

// Done writes the terminating sentinel.
func (e *Encoder) Done() error {
	return e.writeData(doneSentinel)
}

func (e *Encoder) writeData(data string) error {
	if _, err := fmt.Fprintf(e.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}
