package hasher

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"

	"github.com/tidwall/sjson"
	"golang.org/x/text/unicode/norm"
)

// volatileToolFields lists keys stripped from tool_use/tool_result blocks
// before hashing: fields a provider may vary run-to-run without the
// underlying conversation turn having changed.
var volatileToolFields = []string{"cache_control", "index"}

// canonicalize produces a deterministic byte encoding of a filtered,
// deduplicated message sequence. Every frame (message, part, field) is
// length-prefixed so that no separator byte needs to be excluded from
// content, and content is normalized before encoding so semantically
// identical input always produces identical bytes.
func canonicalize(messages []Message) []byte {
	var buf bytes.Buffer
	for _, m := range messages {
		writeFrame(&buf, []byte(m.Role))
		for _, p := range m.Parts {
			writeFrame(&buf, []byte{byte(len(p.Kind))}) // kind tag width marker
			writeFrame(&buf, []byte(p.Kind))
			writeFrame(&buf, canonicalPartBytes(p))
		}
	}
	return buf.Bytes()
}

func canonicalPartBytes(p Part) []byte {
	switch p.Kind {
	case PartText:
		return []byte(norm.NFC.String(p.Text))
	case PartToolUse, PartToolResult:
		return canonicalToolJSON(p.ToolJSON)
	case PartImage:
		sum := sha256.Sum256(p.ImageBytes)
		return sum[:]
	default:
		return nil
	}
}

// canonicalToolJSON strips known-volatile fields, then re-marshals through
// a generic map so object keys come out sorted (encoding/json sorts map
// keys), giving a stable byte representation regardless of the original
// field order.
func canonicalToolJSON(raw []byte) []byte {
	cleaned := raw
	for _, field := range volatileToolFields {
		if stripped, err := sjson.DeleteBytes(cleaned, field); err == nil {
			cleaned = stripped
		}
	}

	var v any
	if err := json.Unmarshal(cleaned, &v); err != nil {
		// Malformed tool JSON still needs a stable encoding; hash the raw
		// bytes rather than fail the whole canonicalization.
		sum := sha256.Sum256(raw)
		return sum[:]
	}

	out, err := json.Marshal(v)
	if err != nil {
		sum := sha256.Sum256(raw)
		return sum[:]
	}
	return out
}

// writeFrame appends a length-prefixed chunk so that no byte sequence in
// content can be mistaken for a delimiter.
func writeFrame(buf *bytes.Buffer, data []byte) {
	var lenBytes [8]byte
	binary.BigEndian.PutUint64(lenBytes[:], uint64(len(data)))
	buf.Write(lenBytes[:])
	buf.Write(data)
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
