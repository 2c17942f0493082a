// internal/types/models_test.go
package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartUnmarshalVariants(t *testing.T) {
	data := []byte(`[
		{"type":"text","text":"hello"},
		{"type":"tool-searchJobs","toolCallId":"c1","state":"input-available","input":{"q":"go"}},
		{"type":"step-start"},
		{"type":"file","url":"https://x/resume.pdf","mediaType":"application/pdf"}
	]`)

	var parts []Part
	require.NoError(t, json.Unmarshal(data, &parts))
	require.Len(t, parts, 4)

	assert.Equal(t, PartText, parts[0].Kind)
	assert.Equal(t, "hello", parts[0].Text)

	assert.Equal(t, PartTool, parts[1].Kind)
	assert.Equal(t, "searchJobs", parts[1].ToolName())
	assert.Equal(t, ToolInputAvailable, parts[1].State)
	assert.JSONEq(t, `{"q":"go"}`, string(parts[1].Input))

	assert.Equal(t, PartOther, parts[2].Kind)
	assert.Equal(t, "step-start", parts[2].Type)

	// Unknown parts pass through byte-for-byte.
	out, err := json.Marshal(parts[3])
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"file","url":"https://x/resume.pdf","mediaType":"application/pdf"}`, string(out))
}

func TestMessageJSONShape(t *testing.T) {
	msg := Message{
		ID:   "m1",
		Role: RoleAssistant,
		Parts: []Part{
			TextPart("Looks good."),
			ToolPart("score", "c9", ToolOutputAvailable),
		},
	}
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id":"m1","role":"assistant",
		"parts":[
			{"type":"text","text":"Looks good."},
			{"type":"tool-score","toolCallId":"c9","state":"output-available"}
		]
	}`, string(data))
}

func TestPartComplete(t *testing.T) {
	assert.False(t, TextPart("").Complete())
	assert.True(t, TextPart("x").Complete())
	assert.False(t, ToolPart("a", "1", ToolInputStreaming).Complete())
	assert.False(t, ToolPart("a", "1", ToolOutputError).Complete())
	assert.True(t, ToolPart("a", "1", ToolOutputAvailable).Complete())
	assert.False(t, OtherPart("step-start", nil).Complete())
}

func TestTranscriptCloneIsIndependent(t *testing.T) {
	orig := Transcript{{ID: "1", Role: RoleUser, Parts: []Part{TextPart("hi")}}}
	cp := orig.Clone()
	cp[0].Parts[0] = TextPart("changed")
	assert.Equal(t, "hi", orig[0].Parts[0].Text)
}

func TestParseArtifactKind(t *testing.T) {
	k, err := ParseArtifactKind("job")
	require.NoError(t, err)
	assert.Equal(t, ArtifactJobDescription, k)

	k, err = ParseArtifactKind("Resume")
	require.NoError(t, err)
	assert.Equal(t, ArtifactResume, k)

	_, err = ParseArtifactKind("cover-letter")
	assert.Error(t, err)
}
