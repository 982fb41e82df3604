package analysis

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/tarsyio/llmproxy/pkg/tokenizer"
)

const systemPrompt = `You are an assistant that analyzes a conversation transcript between a user and an AI model. Respond with a single JSON object matching exactly this shape, no other text:
{
  "summary": string,
  "keyTopics": [string],
  "sentiment": string,
  "userIntent": string,
  "outcomes": [string],
  "actionItems": [string],
  "technicalDetails": {"frameworks": [string], "issues": [string], "solutions": [string]},
  "conversationQuality": {"clarity": string, "completeness": string, "effectiveness": string}
}`

// turn is one request's contribution to the transcript: the user's prompt
// text and the model's response text, extracted from the raw JSON bodies
// without a full unmarshal.
type turn struct {
	userText      string
	assistantText string
}

func extractTurn(requestBody, responseBody []byte) turn {
	var t turn

	messages := gjson.GetBytes(requestBody, "messages")
	if messages.IsArray() {
		arr := messages.Array()
		if len(arr) > 0 {
			last := arr[len(arr)-1]
			if last.Get("role").String() == "user" {
				t.userText = extractText(last.Get("content"))
			}
		}
	}

	t.assistantText = extractText(gjson.GetBytes(responseBody, "content"))
	return t
}

// extractText concatenates every "text"-typed content block, handling both
// a bare string and an array-of-blocks content field.
func extractText(content gjson.Result) string {
	if content.Type.String() == "String" {
		return content.String()
	}
	if !content.IsArray() {
		return ""
	}
	var sb strings.Builder
	content.ForEach(func(_, block gjson.Result) bool {
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

const truncationPlaceholder = "[... middle messages truncated ...]"

// buildTranscript renders turns into a transcript for a maxTokens budget,
// per §4.G's truncation rule. A transcript already within budget, or one
// with no more than headCount+tailCount turns, is returned whole and
// untruncated even if it exceeds maxTokens. Otherwise it keeps the first
// headCount and last tailCount turns verbatim, replacing whatever falls
// between them with a placeholder. If the result is still over budget, turns
// are dropped one at a time from the middle of the retained tail until it
// fits or only the head and a single tail turn remain; the result can then
// still exceed maxTokens.
func buildTranscript(turns []turn, counter *tokenizer.Counter, headCount, tailCount, maxTokens int) (text string, truncated bool) {
	rendered := renderTurns(turns)
	if counter.Count(rendered) <= maxTokens {
		return rendered, false
	}

	if len(turns) <= headCount+tailCount {
		return rendered, false
	}

	head := turns[:headCount]
	tail := turns[len(turns)-tailCount:]

	for {
		var sb strings.Builder
		sb.WriteString(renderTurns(head))
		sb.WriteString("\n" + truncationPlaceholder + "\n")
		sb.WriteString(renderTurns(tail))
		text = sb.String()

		if counter.Count(text) <= maxTokens || len(tail) <= 1 {
			return text, true
		}

		mid := len(tail) / 2
		tail = append(append([]turn{}, tail[:mid]...), tail[mid+1:]...)
	}
}

func renderTurns(turns []turn) string {
	var sb strings.Builder
	for i, t := range turns {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		if t.userText != "" {
			sb.WriteString("User: ")
			sb.WriteString(t.userText)
		}
		if t.assistantText != "" {
			if t.userText != "" {
				sb.WriteString("\n")
			}
			sb.WriteString("Assistant: ")
			sb.WriteString(t.assistantText)
		}
	}
	return sb.String()
}
