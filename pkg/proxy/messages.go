package proxy

import (
	"encoding/base64"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/tarsyio/llmproxy/pkg/hasher"
)

// parseHashInput extracts the message sequence and system prompt text the
// hasher needs, plus the first user message's normalized text for the
// linker's sub-task look-back.
func parseHashInput(body []byte) (messages []hasher.Message, systemPrompt, firstUserMessage string) {
	systemPrompt = extractSystemText(gjson.GetBytes(body, "system"))

	gjson.GetBytes(body, "messages").ForEach(func(_, m gjson.Result) bool {
		msg := hasher.Message{Role: hasher.Role(m.Get("role").String())}
		msg.Parts = parseContentParts(m.Get("content"))
		messages = append(messages, msg)

		if firstUserMessage == "" && msg.Role == hasher.RoleUser {
			firstUserMessage = normalizeWhitespace(extractMessageText(m.Get("content")))
		}
		return true
	})

	return messages, systemPrompt, firstUserMessage
}

func extractSystemText(sys gjson.Result) string {
	if sys.Type == gjson.String {
		return sys.String()
	}
	if !sys.IsArray() {
		return ""
	}
	var sb strings.Builder
	sys.ForEach(func(_, block gjson.Result) bool {
		if block.Get("type").String() == "text" {
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(block.Get("text").String())
		}
		return true
	})
	return sb.String()
}

func parseContentParts(content gjson.Result) []hasher.Part {
	if content.Type == gjson.String {
		return []hasher.Part{{Kind: hasher.PartText, Text: content.String()}}
	}
	if !content.IsArray() {
		return nil
	}

	var parts []hasher.Part
	content.ForEach(func(_, block gjson.Result) bool {
		switch block.Get("type").String() {
		case "text":
			parts = append(parts, hasher.Part{Kind: hasher.PartText, Text: block.Get("text").String()})
		case "tool_use":
			parts = append(parts, hasher.Part{Kind: hasher.PartToolUse, ToolJSON: []byte(block.Raw)})
		case "tool_result":
			parts = append(parts, hasher.Part{Kind: hasher.PartToolResult, ToolJSON: []byte(block.Raw)})
		case "image":
			parts = append(parts, hasher.Part{Kind: hasher.PartImage, ImageBytes: decodeImageBytes(block)})
		}
		return true
	})
	return parts
}

func decodeImageBytes(block gjson.Result) []byte {
	data := block.Get("source.data").String()
	if data == "" {
		return nil
	}
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil
	}
	return decoded
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
