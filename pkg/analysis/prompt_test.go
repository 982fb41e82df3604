package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarsyio/llmproxy/pkg/tokenizer"
)

func TestExtractTurn(t *testing.T) {
	req := []byte(`{"messages":[{"role":"user","content":"hello there"}]}`)
	resp := []byte(`{"content":[{"type":"text","text":"hi back"}]}`)

	tr := extractTurn(req, resp)
	assert.Equal(t, "hello there", tr.userText)
	assert.Equal(t, "hi back", tr.assistantText)
}

func TestExtractTurn_ArrayContent(t *testing.T) {
	req := []byte(`{"messages":[{"role":"user","content":[{"type":"text","text":"part one"}]}]}`)
	resp := []byte(`{"content":[{"type":"tool_use","name":"foo"},{"type":"text","text":"part two"}]}`)

	tr := extractTurn(req, resp)
	assert.Equal(t, "part one", tr.userText)
	assert.Equal(t, "part two", tr.assistantText)
}

func TestBuildTranscript_NoTruncationNeeded(t *testing.T) {
	counter, err := tokenizer.New("")
	require.NoError(t, err)

	turns := []turn{
		{userText: "hi", assistantText: "hello"},
		{userText: "how are you", assistantText: "good"},
	}

	text, truncated := buildTranscript(turns, counter, 3, 3, 8000)
	assert.False(t, truncated)
	assert.Contains(t, text, "hi")
	assert.Contains(t, text, "good")
}

func TestBuildTranscript_TruncatesLongConversation(t *testing.T) {
	counter, err := tokenizer.New("")
	require.NoError(t, err)

	var turns []turn
	for i := 0; i < 50; i++ {
		turns = append(turns, turn{userText: strings.Repeat("word ", 200), assistantText: strings.Repeat("reply ", 200)})
	}

	text, truncated := buildTranscript(turns, counter, 2, 2, 100)
	assert.True(t, truncated)
	assert.Contains(t, text, "middle messages truncated")
}
