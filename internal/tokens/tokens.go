// Package tokens estimates how much model context a transcript occupies.
package tokens

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/user/resumechat/internal/types"
)

// perMessage approximates the role and separator tokens each message adds.
const perMessage = 4

// Counter counts tokens with a tiktoken encoding.
type Counter struct {
	tokenizer *tiktoken.Tiktoken
}

// New returns a counter for model, falling back to cl100k_base for models
// tiktoken does not know.
func New(model string) (*Counter, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}
	return &Counter{tokenizer: enc}, nil
}

func (c *Counter) countText(text string) int {
	if text == "" {
		return 0
	}
	return len(c.tokenizer.Encode(text, nil, nil))
}

// Message returns the token estimate of one message.
func (c *Counter) Message(m types.Message) int {
	n := perMessage
	for _, p := range m.Parts {
		switch p.Kind {
		case types.PartText:
			n += c.countText(p.Text)
		case types.PartTool:
			n += c.countText(p.ToolName())
			n += c.countText(string(p.Input))
			n += c.countText(string(p.Output))
			n += c.countText(p.ErrorText)
		}
	}
	return n
}

// Count returns the token estimate of a whole transcript.
func (c *Counter) Count(t types.Transcript) int {
	total := 0
	for _, m := range t {
		total += c.Message(m)
	}
	return total
}

// Fit returns the longest suffix of t whose estimate stays within budget.
func (c *Counter) Fit(t types.Transcript, budget int) types.Transcript {
	used := 0
	start := len(t)
	for i := len(t) - 1; i >= 0; i-- {
		n := c.Message(t[i])
		if used+n > budget {
			break
		}
		used += n
		start = i
	}
	return t[start:]
}
