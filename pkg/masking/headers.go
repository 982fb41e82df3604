package masking

import (
	"encoding/json"
	"strings"
)

// sensitiveHeaderKeys lists header/field names whose values are always
// treated as credential material when they show up inside a JSON-shaped
// blob (a captured request snapshot, say), regardless of whether they
// match any known literal secret or regex shape.
var sensitiveHeaderKeys = map[string]bool{
	"authorization":        true,
	"x-api-key":            true,
	"anthropic-beta-token": true,
	"api-key":              true,
}

// HeaderMasker is a structural Masker that walks a flat JSON object and
// blanks out values of well-known credential-bearing keys, leaving every
// other field untouched. It only applies to data that parses as a JSON
// object with at least one sensitive key present.
type HeaderMasker struct{}

// NewHeaderMasker returns a Masker that redacts credential-bearing JSON
// object fields by key name.
func NewHeaderMasker() HeaderMasker { return HeaderMasker{} }

func (HeaderMasker) Name() string { return "header_fields" }

func (HeaderMasker) AppliesTo(data string) bool {
	trimmed := strings.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	lower := strings.ToLower(data)
	for key := range sensitiveHeaderKeys {
		if strings.Contains(lower, key) {
			return true
		}
	}
	return false
}

func (HeaderMasker) Mask(data string) string {
	var obj map[string]any
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return data
	}

	changed := false
	for k := range obj {
		if sensitiveHeaderKeys[strings.ToLower(k)] {
			obj[k] = "[REDACTED]"
			changed = true
		}
	}
	if !changed {
		return data
	}

	out, err := json.Marshal(obj)
	if err != nil {
		return data
	}
	return string(out)
}
