// internal/types/models.go
package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// PartKind discriminates the Part union.
type PartKind int

const (
	PartText PartKind = iota
	PartTool
	PartOther
)

func (k PartKind) String() string {
	switch k {
	case PartText:
		return "text"
	case PartTool:
		return "tool"
	default:
		return "other"
	}
}

// ToolState is the lifecycle state of a tool part. Only ToolOutputAvailable
// counts as complete.
type ToolState string

const (
	ToolInputStreaming  ToolState = "input-streaming"
	ToolInputAvailable  ToolState = "input-available"
	ToolOutputAvailable ToolState = "output-available"
	ToolOutputError     ToolState = "output-error"
)

const toolTypePrefix = "tool-"

// Part is one piece of a Message. Exactly one variant is populated,
// selected by Kind:
//
//	PartText  - Text
//	PartTool  - ToolCallID, State, Input, Output, ErrorText
//	PartOther - Raw (the original JSON, passed through untouched)
//
// Type holds the wire type ("text", "tool-<name>", or anything else).
type Part struct {
	Kind       PartKind
	Type       string
	Text       string
	ToolCallID string
	State      ToolState
	Input      json.RawMessage
	Output     json.RawMessage
	ErrorText  string
	Raw        json.RawMessage
}

func TextPart(text string) Part {
	return Part{Kind: PartText, Type: "text", Text: text}
}

func ToolPart(name, callID string, state ToolState) Part {
	return Part{Kind: PartTool, Type: toolTypePrefix + name, ToolCallID: callID, State: state}
}

func OtherPart(typ string, raw json.RawMessage) Part {
	return Part{Kind: PartOther, Type: typ, Raw: raw}
}

// ToolName returns the tool name for tool parts and "" otherwise.
func (p Part) ToolName() string {
	if p.Kind != PartTool {
		return ""
	}
	return strings.TrimPrefix(p.Type, toolTypePrefix)
}

// Complete reports whether the part carries displayable content: non-empty
// text, or a tool call whose output is available.
func (p Part) Complete() bool {
	switch p.Kind {
	case PartText:
		return p.Text != ""
	case PartTool:
		return p.State == ToolOutputAvailable
	default:
		return false
	}
}

type toolPartJSON struct {
	Type       string          `json:"type"`
	ToolCallID string          `json:"toolCallId,omitempty"`
	State      ToolState       `json:"state,omitempty"`
	Input      json.RawMessage `json:"input,omitempty"`
	Output     json.RawMessage `json:"output,omitempty"`
	ErrorText  string          `json:"errorText,omitempty"`
}

type textPartJSON struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (p Part) MarshalJSON() ([]byte, error) {
	switch p.Kind {
	case PartText:
		return json.Marshal(textPartJSON{Type: "text", Text: p.Text})
	case PartTool:
		return json.Marshal(toolPartJSON{
			Type:       p.Type,
			ToolCallID: p.ToolCallID,
			State:      p.State,
			Input:      p.Input,
			Output:     p.Output,
			ErrorText:  p.ErrorText,
		})
	default:
		if len(p.Raw) > 0 {
			return p.Raw, nil
		}
		return json.Marshal(struct {
			Type string `json:"type"`
		}{p.Type})
	}
}

func (p *Part) UnmarshalJSON(data []byte) error {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return fmt.Errorf("unmarshal part: %w", err)
	}

	switch {
	case head.Type == "text":
		var tp textPartJSON
		if err := json.Unmarshal(data, &tp); err != nil {
			return fmt.Errorf("unmarshal text part: %w", err)
		}
		*p = TextPart(tp.Text)
	case strings.HasPrefix(head.Type, toolTypePrefix):
		var tp toolPartJSON
		if err := json.Unmarshal(data, &tp); err != nil {
			return fmt.Errorf("unmarshal tool part: %w", err)
		}
		*p = Part{
			Kind:       PartTool,
			Type:       tp.Type,
			ToolCallID: tp.ToolCallID,
			State:      tp.State,
			Input:      tp.Input,
			Output:     tp.Output,
			ErrorText:  tp.ErrorText,
		}
	default:
		raw := make(json.RawMessage, len(data))
		copy(raw, data)
		*p = OtherPart(head.Type, raw)
	}
	return nil
}

// Message is one turn of the transcript.
type Message struct {
	ID    MessageID `json:"id"`
	Role  Role      `json:"role"`
	Parts []Part    `json:"parts"`
}

// Text concatenates the message's text parts.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Kind == PartText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// Clone returns a deep copy of the message's part slice.
func (m Message) Clone() Message {
	out := m
	out.Parts = append([]Part(nil), m.Parts...)
	return out
}

// Transcript is the ordered message list of one session.
type Transcript []Message

// Clone copies the transcript so callers can hold it across mutations.
func (t Transcript) Clone() Transcript {
	if t == nil {
		return nil
	}
	out := make(Transcript, len(t))
	for i, m := range t {
		out[i] = m.Clone()
	}
	return out
}

// Status is the lifecycle state of the current turn.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusSubmitted Status = "submitted"
	StatusStreaming Status = "streaming"
)

// InFlight reports whether a turn is being submitted or streamed.
func (s Status) InFlight() bool {
	return s == StatusSubmitted || s == StatusStreaming
}

type ArtifactKind string

const (
	ArtifactResume         ArtifactKind = "resume"
	ArtifactJobDescription ArtifactKind = "job-description"
)

// ArtifactKinds lists every attachment slot a session has.
var ArtifactKinds = []ArtifactKind{ArtifactResume, ArtifactJobDescription}

func ParseArtifactKind(s string) (ArtifactKind, error) {
	switch strings.ToLower(s) {
	case "resume":
		return ArtifactResume, nil
	case "job", "job-description", "jd":
		return ArtifactJobDescription, nil
	default:
		return "", fmt.Errorf("unknown attachment kind: %s", s)
	}
}

// Artifact describes an uploaded attachment.
type Artifact struct {
	URL         string `json:"url,omitempty"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
}

// Principal is the authenticated user's profile as sent to registration.
type Principal struct {
	ID                   string `json:"id"`
	DisplayName          string `json:"displayName,omitempty"`
	PrimaryEmail         string `json:"primaryEmail,omitempty"`
	PrimaryEmailVerified bool   `json:"primaryEmailVerified"`
	ProfileImageURL      string `json:"profileImageUrl,omitempty"`
}

type FragmentType string

const (
	FragmentStart               FragmentType = "start"
	FragmentTextStart           FragmentType = "text-start"
	FragmentTextDelta           FragmentType = "text-delta"
	FragmentTextEnd             FragmentType = "text-end"
	FragmentToolInputStart      FragmentType = "tool-input-start"
	FragmentToolInputDelta      FragmentType = "tool-input-delta"
	FragmentToolInputAvailable  FragmentType = "tool-input-available"
	FragmentToolOutputAvailable FragmentType = "tool-output-available"
	FragmentToolOutputError     FragmentType = "tool-output-error"
	FragmentError               FragmentType = "error"
	FragmentFinish              FragmentType = "finish"
)

// Fragment is one incremental frame of a streaming assistant turn.
type Fragment struct {
	Type           FragmentType    `json:"type"`
	MessageID      MessageID       `json:"messageId,omitempty"`
	ID             string          `json:"id,omitempty"`
	Delta          string          `json:"delta,omitempty"`
	ToolCallID     string          `json:"toolCallId,omitempty"`
	ToolName       string          `json:"toolName,omitempty"`
	InputTextDelta string          `json:"inputTextDelta,omitempty"`
	Input          json.RawMessage `json:"input,omitempty"`
	Output         json.RawMessage `json:"output,omitempty"`
	ErrorText      string          `json:"errorText,omitempty"`
}
