package proxy

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarsyio/llmproxy/pkg/hasher"
)

func TestParseHashInput_SimpleUserMessage(t *testing.T) {
	body := []byte(`{"system":"be concise","messages":[{"role":"user","content":"hello"}]}`)

	messages, system, firstUser := parseHashInput(body)

	require.Len(t, messages, 1)
	assert.Equal(t, hasher.RoleUser, messages[0].Role)
	require.Len(t, messages[0].Parts, 1)
	assert.Equal(t, hasher.PartText, messages[0].Parts[0].Kind)
	assert.Equal(t, "hello", messages[0].Parts[0].Text)
	assert.Equal(t, "be concise", system)
	assert.Equal(t, "hello", firstUser)
}

func TestParseHashInput_FirstUserMessageIsNormalizedAndOnlyFirst(t *testing.T) {
	body := []byte(`{"messages":[
		{"role":"user","content":"  do   X  "},
		{"role":"assistant","content":"ok"},
		{"role":"user","content":"do Y"}
	]}`)

	_, _, firstUser := parseHashInput(body)
	assert.Equal(t, "do X", firstUser)
}

func TestParseHashInput_ToolUseAndToolResultBlocks(t *testing.T) {
	body := []byte(`{"messages":[{"role":"assistant","content":[
		{"type":"tool_use","id":"1","name":"Task","input":{"prompt":"do X"}},
		{"type":"tool_result","tool_use_id":"1","content":"done"}
	]}]}`)

	messages, _, _ := parseHashInput(body)
	require.Len(t, messages, 1)
	require.Len(t, messages[0].Parts, 2)
	assert.Equal(t, hasher.PartToolUse, messages[0].Parts[0].Kind)
	assert.Equal(t, hasher.PartToolResult, messages[0].Parts[1].Kind)
	assert.Contains(t, string(messages[0].Parts[0].ToolJSON), "Task")
}

func TestParseHashInput_ImageDecodedFromBase64(t *testing.T) {
	raw := []byte("fake-image-bytes")
	encoded := base64.StdEncoding.EncodeToString(raw)
	body := []byte(`{"messages":[{"role":"user","content":[{"type":"image","source":{"type":"base64","media_type":"image/png","data":"` + encoded + `"}}]}]}`)

	messages, _, _ := parseHashInput(body)
	require.Len(t, messages, 1)
	require.Len(t, messages[0].Parts, 1)
	assert.Equal(t, hasher.PartImage, messages[0].Parts[0].Kind)
	assert.Equal(t, raw, messages[0].Parts[0].ImageBytes)
}

func TestExtractSystemText_ArrayOfBlocks(t *testing.T) {
	body := []byte(`{"system":[{"type":"text","text":"one"},{"type":"text","text":"two"}],"messages":[]}`)
	_, system, _ := parseHashInput(body)
	assert.Equal(t, "one\ntwo", system)
}
