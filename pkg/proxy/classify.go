package proxy

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/tarsyio/llmproxy/pkg/storage"
)

// tenantFromHost extracts the tenant label from a Host header: the first
// dot-separated segment, with any port stripped. "acme.llmproxy.example:443"
// and "acme:8080" both resolve to tenant "acme".
func tenantFromHost(host string) string {
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	if i := strings.IndexByte(host, '.'); i >= 0 {
		host = host[:i]
	}
	return host
}

// classifyRequestType implements §4.D step 1's classification rule.
func classifyRequestType(body []byte) storage.RequestType {
	if len(body) == 0 {
		return storage.RequestTypeHealthCheck
	}

	var userTexts []string
	gjson.GetBytes(body, "messages").ForEach(func(_, m gjson.Result) bool {
		if m.Get("role").String() == "user" {
			userTexts = append(userTexts, extractMessageText(m.Get("content")))
		}
		return true
	})

	if len(userTexts) == 1 && strings.ToLower(strings.TrimSpace(userTexts[0])) == "quota" {
		return storage.RequestTypeQuota
	}

	if systemMessageCount(body) <= 1 {
		return storage.RequestTypeQueryEvaluation
	}
	return storage.RequestTypeInference
}

// systemMessageCount counts the system-authored content in the body: the
// top-level "system" field (1 for a bare string, one per block for an
// array of blocks) plus any role:"system" entries inside "messages".
func systemMessageCount(body []byte) int {
	n := 0

	sys := gjson.GetBytes(body, "system")
	switch {
	case sys.IsArray():
		n += len(sys.Array())
	case sys.Exists() && sys.String() != "":
		n++
	}

	gjson.GetBytes(body, "messages").ForEach(func(_, m gjson.Result) bool {
		if m.Get("role").String() == "system" {
			n++
		}
		return true
	})

	return n
}

// extractMessageText concatenates the text content of a single message's
// content field, whether it is a bare string or an array of typed blocks.
func extractMessageText(content gjson.Result) string {
	if content.Type == gjson.String {
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
