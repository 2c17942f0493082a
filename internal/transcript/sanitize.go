// Package transcript holds pure operations over a chat transcript.
package transcript

import "github.com/user/resumechat/internal/types"

// Sanitize removes incomplete assistant output from a transcript.
//
// Assistant messages lose every tool part that has not reached
// output-available; text and unrecognised parts are kept. Any message
// (of any role) left without a non-empty text part or a completed tool
// part is then dropped. The input is never modified and the relative
// order of surviving messages and parts is preserved, so applying
// Sanitize twice gives the same result as applying it once.
func Sanitize(t types.Transcript) types.Transcript {
	out := make(types.Transcript, 0, len(t))
	for _, msg := range t {
		if msg.Role == types.RoleAssistant {
			msg = filterParts(msg)
		}
		if !Renderable(msg) {
			continue
		}
		out = append(out, msg)
	}
	return out
}

// Renderable reports whether the message has at least one non-empty text
// part or one tool part whose output is available.
func Renderable(msg types.Message) bool {
	for _, p := range msg.Parts {
		if p.Complete() {
			return true
		}
	}
	return false
}

func filterParts(msg types.Message) types.Message {
	parts := make([]types.Part, 0, len(msg.Parts))
	for _, p := range msg.Parts {
		switch p.Kind {
		case types.PartTool:
			if p.State != types.ToolOutputAvailable {
				continue
			}
		case types.PartText, types.PartOther:
		}
		parts = append(parts, p)
	}
	msg.Parts = parts
	return msg
}
