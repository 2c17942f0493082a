package devserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/user/resumechat/internal/stream"
	"github.com/user/resumechat/internal/types"
)

const resumeRequiredText = "Please upload your resume so I can review it. " +
	"Use the attach button (or `resumechat attach resume`) to add a PDF, then ask your question again."

const reviewAdvice = "Lead each bullet with a strong verb and quantify the outcome where you can. " +
	"Keep the summary to two lines and move older roles into a short list."

// attachmentsOutput is the result of the readAttachments tool call.
type attachmentsOutput struct {
	Resume         string `json:"resume"`
	JobDescription string `json:"jobDescription,omitempty"`
	Excerpt        string `json:"excerpt,omitempty"`
}

// streamText streams text as one assistant message and returns it.
func (s *Server) streamText(ctx context.Context, enc *stream.Encoder, text string) (types.Message, error) {
	msg := types.Message{ID: types.NewMessageID(), Role: types.RoleAssistant}
	if err := enc.Encode(types.Fragment{Type: types.FragmentStart, MessageID: msg.ID}); err != nil {
		return msg, err
	}
	if err := s.streamWords(ctx, enc, "text-1", text); err != nil {
		return msg, err
	}
	msg.Parts = append(msg.Parts, types.TextPart(text))
	return msg, s.finish(enc)
}

// streamReview reads the session's attachments through a tool call, then
// streams a review.
func (s *Server) streamReview(ctx context.Context, enc *stream.Encoder, id types.SessionID, resume *types.Artifact, prompt string) (types.Message, error) {
	msg := types.Message{ID: types.NewMessageID(), Role: types.RoleAssistant}
	if err := enc.Encode(types.Fragment{Type: types.FragmentStart, MessageID: msg.ID}); err != nil {
		return msg, err
	}

	callID := "call-" + string(types.NewMessageID())[:8]
	input, _ := json.Marshal(map[string]string{"sessionId": string(id)})
	if err := enc.Encode(types.Fragment{Type: types.FragmentToolInputStart, ToolCallID: callID, ToolName: "readAttachments"}); err != nil {
		return msg, err
	}
	if err := enc.Encode(types.Fragment{Type: types.FragmentToolInputAvailable, ToolCallID: callID, ToolName: "readAttachments", Input: input}); err != nil {
		return msg, err
	}

	out := attachmentsOutput{Resume: resume.Name}
	jd, err := s.artifacts.Attachment(ctx, "", id, types.ArtifactJobDescription)
	if err != nil {
		s.logger.Warn("load job description failed", "session_id", id, "error", err)
	}
	if jd != nil {
		out.JobDescription = jd.Name
		out.Excerpt, err = s.artifacts.Excerpt(ctx, id, types.ArtifactJobDescription, firstKeyword(prompt), excerptChars)
		if err != nil {
			s.logger.Warn("excerpt job description failed", "session_id", id, "error", err)
		}
	}
	output, _ := json.Marshal(out)
	if err := enc.Encode(types.Fragment{Type: types.FragmentToolOutputAvailable, ToolCallID: callID, Output: output}); err != nil {
		return msg, err
	}
	tool := types.ToolPart("readAttachments", callID, types.ToolOutputAvailable)
	tool.Input = input
	tool.Output = output
	msg.Parts = append(msg.Parts, tool)

	text := reviewText(out, prompt)
	if err := s.streamWords(ctx, enc, "text-1", text); err != nil {
		return msg, err
	}
	msg.Parts = append(msg.Parts, types.TextPart(text))
	return msg, s.finish(enc)
}

func reviewText(out attachmentsOutput, prompt string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "I've read your resume (%s)", out.Resume)
	if out.JobDescription != "" {
		fmt.Fprintf(&b, " and the job description (%s)", out.JobDescription)
	}
	fmt.Fprintf(&b, ". On %q: %s", prompt, reviewAdvice)
	if out.Excerpt != "" {
		fmt.Fprintf(&b, " The posting stresses: %q.", out.Excerpt)
	}
	return b.String()
}

// firstKeyword picks the longest word of the prompt as an excerpt anchor.
func firstKeyword(prompt string) string {
	best := ""
	for _, w := range strings.Fields(prompt) {
		w = strings.Trim(w, ".,?!\"'")
		if len(w) > len(best) {
			best = w
		}
	}
	return best
}

func (s *Server) streamWords(ctx context.Context, enc *stream.Encoder, partID, text string) error {
	if err := enc.Encode(types.Fragment{Type: types.FragmentTextStart, ID: partID}); err != nil {
		return err
	}
	for _, word := range strings.SplitAfter(text, " ") {
		if err := s.pause(ctx); err != nil {
			return err
		}
		if err := enc.Encode(types.Fragment{Type: types.FragmentTextDelta, ID: partID, Delta: word}); err != nil {
			return err
		}
	}
	return enc.Encode(types.Fragment{Type: types.FragmentTextEnd, ID: partID})
}

func (s *Server) finish(enc *stream.Encoder) error {
	if err := enc.Encode(types.Fragment{Type: types.FragmentFinish}); err != nil {
		return err
	}
	return enc.Done()
}

func (s *Server) pause(ctx context.Context) error {
	if s.wordDelay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.wordDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
