package hasher

import "golang.org/x/text/unicode/norm"

// Hash computes current_message_hash, parent_message_hash, and system_hash
// for a message sequence plus its system prompt, per the canonicalization
// rules: synthetic reminders filtered, adjacent duplicate tool blocks
// collapsed, the trailing assistant response (if any) excluded, and the
// system prompt hashed independently of the rest of the conversation.
func Hash(messages []Message, systemPrompt string) Result {
	filtered := filterSystemReminders(messages)
	filtered = dedupeAdjacentToolBlocks(filtered)
	filtered = excludeTrailingAssistant(filtered)

	current := sha256Hex(canonicalize(filtered))
	system := sha256Hex([]byte(norm.NFC.String(systemPrompt)))

	parent := ""
	if idx, ok := lastUserTurnIndex(filtered); ok {
		parent = sha256Hex(canonicalize(excludeTrailingAssistant(filtered[:idx])))
	}

	return Result{
		CurrentMessageHash: current,
		ParentMessageHash:  parent,
		SystemHash:         system,
	}
}

func filterSystemReminders(messages []Message) []Message {
	out := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.SystemReminder {
			continue
		}
		out = append(out, m)
	}
	return out
}

// dedupeAdjacentToolBlocks collapses a tool_use/tool_result part that is
// byte-identical to the immediately preceding part of the same kind,
// matching clients that re-send the last tool exchange verbatim.
func dedupeAdjacentToolBlocks(messages []Message) []Message {
	out := make([]Message, 0, len(messages))
	var prevPart *Part
	for _, m := range messages {
		keptParts := make([]Part, 0, len(m.Parts))
		for _, p := range m.Parts {
			if isToolPart(p) && prevPart != nil && isToolPart(*prevPart) &&
				p.Kind == prevPart.Kind && string(p.ToolJSON) == string(prevPart.ToolJSON) {
				continue
			}
			keptParts = append(keptParts, p)
			pCopy := p
			prevPart = &pCopy
		}
		if len(keptParts) == 0 && len(m.Parts) > 0 {
			// every part was a duplicate; drop the now-empty message
			continue
		}
		out = append(out, Message{Role: m.Role, Parts: keptParts})
	}
	return out
}

func isToolPart(p Part) bool {
	return p.Kind == PartToolUse || p.Kind == PartToolResult
}

// excludeTrailingAssistant drops a trailing run of assistant messages so
// the hash represents the prompt as of the latest user/tool turn, not an
// echoed-back prior response.
func excludeTrailingAssistant(messages []Message) []Message {
	end := len(messages)
	for end > 0 && messages[end-1].Role == RoleAssistant {
		end--
	}
	return messages[:end]
}

// lastUserTurnIndex returns the index of the final user-authored message,
// and whether at least two user turns exist (a single user turn has no
// parent to link to).
func lastUserTurnIndex(messages []Message) (int, bool) {
	userTurns := 0
	lastIdx := -1
	for i, m := range messages {
		if m.Role == RoleUser {
			userTurns++
			lastIdx = i
		}
	}
	if userTurns < 2 {
		return 0, false
	}
	return lastIdx, true
}
