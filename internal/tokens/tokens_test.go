package tokens

import (
	"encoding/json"
	"testing"

	"github.com/user/resumechat/internal/types"
)

func newCounter(t *testing.T) *Counter {
	t.Helper()
	c, err := New("gpt-4")
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func msg(role types.Role, text string) types.Message {
	return types.Message{ID: types.NewMessageID(), Role: role, Parts: []types.Part{types.TextPart(text)}}
}

func TestCount(t *testing.T) {
	c := newCounter(t)

	if n := c.Count(nil); n != 0 {
		t.Errorf("expected 0 for empty transcript, got %d", n)
	}

	short := c.Count(types.Transcript{msg(types.RoleUser, "hi")})
	long := c.Count(types.Transcript{msg(types.RoleUser, "How would this resume differ for startups versus large companies?")})
	if short <= perMessage {
		t.Errorf("expected text tokens beyond overhead, got %d", short)
	}
	if long <= short {
		t.Errorf("expected longer text to cost more: %d <= %d", long, short)
	}
}

func TestCountToolParts(t *testing.T) {
	c := newCounter(t)

	tool := types.ToolPart("score", "c1", types.ToolOutputAvailable)
	tool.Input = json.RawMessage(`{"section":"experience"}`)
	tool.Output = json.RawMessage(`{"score":7,"notes":"quantify impact"}`)
	withTool := types.Message{ID: "m", Role: types.RoleAssistant, Parts: []types.Part{types.TextPart("ok"), tool}}
	textOnly := types.Message{ID: "m", Role: types.RoleAssistant, Parts: []types.Part{types.TextPart("ok")}}

	if c.Message(withTool) <= c.Message(textOnly) {
		t.Error("expected tool part to add tokens")
	}
}

func TestUnknownModelFallsBack(t *testing.T) {
	if _, err := New("gemini-2.5-flash"); err != nil {
		t.Fatal(err)
	}
}

func TestFit(t *testing.T) {
	c := newCounter(t)
	tr := types.Transcript{
		msg(types.RoleUser, "first question about my resume"),
		msg(types.RoleAssistant, "first answer"),
		msg(types.RoleUser, "second"),
	}

	if got := c.Fit(tr, c.Count(tr)); len(got) != 3 {
		t.Errorf("expected all messages to fit, got %d", len(got))
	}

	last := c.Message(tr[2])
	got := c.Fit(tr, last)
	if len(got) != 1 || got[0].Text() != "second" {
		t.Errorf("expected only the last message, got %#v", got)
	}

	if got := c.Fit(tr, 0); len(got) != 0 {
		t.Errorf("expected nothing to fit in zero budget, got %d", len(got))
	}
}
