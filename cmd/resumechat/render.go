package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/user/resumechat/internal/chat"
	"github.com/user/resumechat/internal/types"
)

// renderer prints controller snapshots as an append-only terminal log. It
// writes only what changed since the previous snapshot: new assistant text
// and tool calls as they complete.
type renderer struct {
	mu sync.Mutex
	w  io.Writer

	primed  bool
	msgID   types.MessageID
	printed int
	tools   map[string]bool
	status  types.Status
}

func newRenderer(w io.Writer) *renderer {
	return &renderer{w: w, tools: make(map[string]bool)}
}

// unprime suppresses output until the next prime, e.g. while a session is
// being opened.
func (r *renderer) unprime() {
	r.mu.Lock()
	r.primed = false
	r.mu.Unlock()
}

// prime prints a loaded transcript in full and starts incremental output.
func (r *renderer) prime(t types.Transcript) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.primed = true
	r.msgID = ""
	r.printed = 0
	r.tools = make(map[string]bool)
	r.status = types.StatusIdle
	for _, m := range t {
		switch m.Role {
		case types.RoleUser:
			fmt.Fprintf(r.w, "you> %s\n", m.Text())
		case types.RoleAssistant:
			for _, p := range m.Parts {
				if p.Kind == types.PartTool {
					fmt.Fprintf(r.w, "[%s]\n", p.ToolName())
				}
			}
			fmt.Fprintf(r.w, "assistant> %s\n", m.Text())
			r.msgID = m.ID
			r.printed = len(m.Text())
		}
	}
}

func (r *renderer) update(s chat.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.primed || s.Loading {
		return
	}

	if n := len(s.Messages); n > 0 && s.Messages[n-1].Role == types.RoleAssistant {
		last := s.Messages[n-1]
		if last.ID != r.msgID {
			r.msgID = last.ID
			r.printed = 0
			r.tools = make(map[string]bool)
			fmt.Fprint(r.w, "assistant> ")
		}
		for _, p := range last.Parts {
			if p.Kind == types.PartTool && p.Complete() && !r.tools[p.ToolCallID] {
				r.tools[p.ToolCallID] = true
				fmt.Fprintf(r.w, "[%s] ", p.ToolName())
			}
		}
		if text := last.Text(); len(text) > r.printed {
			fmt.Fprint(r.w, text[r.printed:])
			r.printed = len(text)
		}
	}

	if r.status.InFlight() && !s.Status.InFlight() {
		fmt.Fprintln(r.w)
	}
	r.status = s.Status
}

func (r *renderer) notice(level types.NoticeLevel, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	marker := "!"
	if level == types.NoticeSuccess {
		marker = "*"
	}
	fmt.Fprintf(r.w, "%s %s\n", marker, strings.TrimSpace(text))
}

func (r *renderer) line(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, format+"\n", args...)
}
