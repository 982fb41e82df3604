// Package hasher computes the deterministic conversation-lineage hashes the
// Conversation Linker uses to stitch requests into conversations: a pure,
// byte-for-byte reproducible canonicalization of a message sequence.
package hasher

// Role is the speaker of a message turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// PartKind tags the shape of a single content part within a message.
type PartKind string

const (
	PartText       PartKind = "text"
	PartToolUse    PartKind = "tool_use"
	PartToolResult PartKind = "tool_result"
	PartImage      PartKind = "image"
)

// Part is one content block of a message. Exactly one of the payload
// fields is populated, matching Kind.
type Part struct {
	Kind PartKind

	// Text holds the raw (not yet normalized) text for PartText.
	Text string

	// ToolJSON holds the raw JSON object for PartToolUse / PartToolResult
	// (e.g. {"id":"...","name":"...","input":{...}}).
	ToolJSON []byte

	// ImageBytes holds the decoded image payload for PartImage; the
	// data-URL wrapper, if any, must already be stripped by the caller.
	ImageBytes []byte
}

// Message is one role-tagged turn made up of one or more content parts.
type Message struct {
	Role Role
	Parts []Part

	// SystemReminder marks a synthetic message injected by tooling (not
	// authored by the user or model) that must be filtered before hashing.
	SystemReminder bool
}

// Result holds the three hashes the Conversation Linker consumes.
type Result struct {
	CurrentMessageHash string
	ParentMessageHash  string // empty when there is only one user turn
	SystemHash         string
}
