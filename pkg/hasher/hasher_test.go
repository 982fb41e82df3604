package hasher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func textMsg(role Role, text string) Message {
	return Message{Role: role, Parts: []Part{{Kind: PartText, Text: text}}}
}

func TestHash_DeterministicForIdenticalInput(t *testing.T) {
	messages := []Message{
		textMsg(RoleUser, "hello there"),
	}

	r1 := Hash(messages, "be helpful")
	r2 := Hash(messages, "be helpful")

	assert.Equal(t, r1, r2)
	assert.NotEmpty(t, r1.CurrentMessageHash)
	assert.NotEmpty(t, r1.SystemHash)
}

func TestHash_SingleUserTurnHasNoParent(t *testing.T) {
	messages := []Message{textMsg(RoleUser, "first question")}

	r := Hash(messages, "")

	assert.Empty(t, r.ParentMessageHash)
}

func TestHash_SecondUserTurnHasParent(t *testing.T) {
	messages := []Message{
		textMsg(RoleUser, "first question"),
		textMsg(RoleAssistant, "first answer"),
		textMsg(RoleUser, "second question"),
	}

	r := Hash(messages, "")

	assert.NotEmpty(t, r.ParentMessageHash)

	parentOnly := Hash(messages[:1], "")
	assert.Equal(t, parentOnly.CurrentMessageHash, r.ParentMessageHash)
}

func TestHash_ExcludesTrailingAssistantResponse(t *testing.T) {
	withResponse := []Message{
		textMsg(RoleUser, "question"),
		textMsg(RoleAssistant, "answer"),
	}
	withoutResponse := []Message{
		textMsg(RoleUser, "question"),
	}

	assert.Equal(t,
		Hash(withoutResponse, "").CurrentMessageHash,
		Hash(withResponse, "").CurrentMessageHash,
	)
}

func TestHash_FiltersSystemReminderMessages(t *testing.T) {
	base := []Message{textMsg(RoleUser, "question")}
	withReminder := []Message{
		{Role: RoleSystem, SystemReminder: true, Parts: []Part{{Kind: PartText, Text: "<system-reminder>ignore</system-reminder>"}}},
		textMsg(RoleUser, "question"),
	}

	assert.Equal(t, Hash(base, "").CurrentMessageHash, Hash(withReminder, "").CurrentMessageHash)
}

func TestHash_DedupesAdjacentIdenticalToolBlocks(t *testing.T) {
	toolPart := Part{Kind: PartToolUse, ToolJSON: []byte(`{"id":"1","name":"search","input":{"q":"x"}}`)}
	single := []Message{{Role: RoleAssistant, Parts: []Part{toolPart}}, textMsg(RoleUser, "next")}
	duplicated := []Message{
		{Role: RoleAssistant, Parts: []Part{toolPart}},
		{Role: RoleAssistant, Parts: []Part{toolPart}},
		textMsg(RoleUser, "next"),
	}

	assert.Equal(t, Hash(single, "").CurrentMessageHash, Hash(duplicated, "").CurrentMessageHash)
}

func TestHash_TextNormalizedAcrossUnicodeForms(t *testing.T) {
	// "é" as a precomposed codepoint vs "e" + combining acute accent.
	precomposed := []Message{textMsg(RoleUser, "café")}
	decomposed := []Message{textMsg(RoleUser, "café")}

	assert.Equal(t, Hash(precomposed, "").CurrentMessageHash, Hash(decomposed, "").CurrentMessageHash)
}

func TestHash_ToolJSONFieldOrderDoesNotAffectHash(t *testing.T) {
	a := []Message{{Role: RoleAssistant, Parts: []Part{{Kind: PartToolUse, ToolJSON: []byte(`{"id":"1","name":"search"}`)}}}}
	b := []Message{{Role: RoleAssistant, Parts: []Part{{Kind: PartToolUse, ToolJSON: []byte(`{"name":"search","id":"1"}`)}}}}

	assert.Equal(t, Hash(a, "").CurrentMessageHash, Hash(b, "").CurrentMessageHash)
}

func TestHash_ImageHashedByByteContentNotWrapper(t *testing.T) {
	img := []byte{0xFF, 0xD8, 0xFF, 0x01, 0x02}
	a := []Message{{Role: RoleUser, Parts: []Part{{Kind: PartImage, ImageBytes: img}}}}
	b := []Message{{Role: RoleUser, Parts: []Part{{Kind: PartImage, ImageBytes: img}}}}

	assert.Equal(t, Hash(a, "").CurrentMessageHash, Hash(b, "").CurrentMessageHash)
}

func TestHash_SystemPromptChangeDoesNotAffectMessageHash(t *testing.T) {
	messages := []Message{textMsg(RoleUser, "question")}

	r1 := Hash(messages, "prompt one")
	r2 := Hash(messages, "prompt two")

	assert.Equal(t, r1.CurrentMessageHash, r2.CurrentMessageHash)
	assert.NotEqual(t, r1.SystemHash, r2.SystemHash)
}
