package masking

import "regexp"

// compiledPattern is a single regex-based redaction rule applied to any
// string that might reach a log line or a stored row.
type compiledPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// builtinPatterns covers secret shapes that show up in provider headers and
// error bodies even when the literal value was never registered with the
// service (e.g. a token embedded in an upstream error message).
func builtinPatterns() []compiledPattern {
	return []compiledPattern{
		{
			name:        "anthropic_api_key",
			regex:       regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]{10,}`),
			replacement: "[REDACTED:anthropic_api_key]",
		},
		{
			name:        "oauth_bearer_token",
			regex:       regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9._~+/-]{10,}=*`),
			replacement: "[REDACTED:bearer_token]",
		},
		{
			name:        "oauth_refresh_token",
			regex:       regexp.MustCompile(`\bsk-ant-ort01-[A-Za-z0-9_-]{10,}`),
			replacement: "[REDACTED:refresh_token]",
		},
		{
			name:        "generic_api_key_field",
			regex:       regexp.MustCompile(`(?i)"(api[_-]?key|access[_-]?token|refresh[_-]?token)"\s*:\s*"[^"]{6,}"`),
			replacement: `"$1":"[REDACTED]"`,
		},
	}
}
