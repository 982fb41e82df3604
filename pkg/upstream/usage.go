package upstream

import "github.com/tidwall/gjson"

// Usage is the token accounting the proxy extracts from a message_start or
// message_delta event's "usage" object, or from a buffered response body.
type Usage struct {
	InputTokens         int64
	OutputTokens        int64
	CacheCreationTokens int64
	CacheReadTokens     int64
}

// ParseUsage reads a usage object out of a message_start event's "message"
// field or a message_delta event's top-level "usage" field. ok is false
// when the payload carries no usage object at all (most events don't).
func ParseUsage(eventData []byte) (Usage, bool) {
	root := gjson.ParseBytes(eventData)

	usage := root.Get("usage")
	if !usage.Exists() {
		usage = root.Get("message.usage")
	}
	if !usage.Exists() {
		return Usage{}, false
	}

	return Usage{
		InputTokens:         usage.Get("input_tokens").Int(),
		OutputTokens:        usage.Get("output_tokens").Int(),
		CacheCreationTokens: usage.Get("cache_creation_input_tokens").Int(),
		CacheReadTokens:     usage.Get("cache_read_input_tokens").Int(),
	}, true
}

// ParseUsageFromBody extracts usage from a buffered (non-streaming)
// response body's top-level "usage" field.
func ParseUsageFromBody(body []byte) (Usage, bool) {
	usage := gjson.GetBytes(body, "usage")
	if !usage.Exists() {
		return Usage{}, false
	}
	return Usage{
		InputTokens:         usage.Get("input_tokens").Int(),
		OutputTokens:        usage.Get("output_tokens").Int(),
		CacheCreationTokens: usage.Get("cache_creation_input_tokens").Int(),
		CacheReadTokens:     usage.Get("cache_read_input_tokens").Int(),
	}, true
}

// CountToolUseBlocks counts "tool_use" content blocks in a buffered
// response body's "content" array, the §4.D tool-call count.
func CountToolUseBlocks(body []byte) int {
	content := gjson.GetBytes(body, "content")
	if !content.IsArray() {
		return 0
	}
	n := 0
	content.ForEach(func(_, block gjson.Result) bool {
		if block.Get("type").String() == "tool_use" {
			n++
		}
		return true
	})
	return n
}
