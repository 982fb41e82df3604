package upstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseUsage_FromMessageStart(t *testing.T) {
	data := []byte(`{"type":"message_start","message":{"usage":{"input_tokens":42,"output_tokens":0}}}`)

	usage, ok := ParseUsage(data)

	assert.True(t, ok)
	assert.Equal(t, int64(42), usage.InputTokens)
}

func TestParseUsage_FromMessageDelta(t *testing.T) {
	data := []byte(`{"type":"message_delta","usage":{"output_tokens":17}}`)

	usage, ok := ParseUsage(data)

	assert.True(t, ok)
	assert.Equal(t, int64(17), usage.OutputTokens)
}

func TestParseUsage_NoUsageField(t *testing.T) {
	data := []byte(`{"type":"content_block_delta","delta":{"text":"hi"}}`)

	_, ok := ParseUsage(data)

	assert.False(t, ok)
}

func TestCountToolUseBlocks(t *testing.T) {
	body := []byte(`{"content":[{"type":"text","text":"hi"},{"type":"tool_use","name":"Task"},{"type":"tool_use","name":"Read"}]}`)

	assert.Equal(t, 2, CountToolUseBlocks(body))
}

func TestCountToolUseBlocks_NoContent(t *testing.T) {
	assert.Equal(t, 0, CountToolUseBlocks([]byte(`{}`)))
}
