package linker

import (
	"context"
	"strconv"

	"github.com/tidwall/gjson"
)

// trySubtask implements the sub-task look-back: within the trailing 30s
// window, find a parent candidate whose response body dispatched a Task
// tool-use call whose prompt matches this request's first user message.
// Candidates are already ordered most-recent first by the store query, so
// the first textual match wins the tie-break against older candidates.
func (l *Linker) trySubtask(ctx context.Context, in Input) (Result, bool) {
	if in.FirstUserMessage == "" {
		return Result{}, false
	}

	candidates, err := l.store.FindSubtaskCandidates(ctx, in.Domain, in.Timestamp.Add(-subtaskLookback))
	if err != nil {
		l.log.Warn("subtask candidate lookup failed", "error", err)
		return Result{}, false
	}

	want := normalizeWhitespace(in.FirstUserMessage)

	for _, c := range candidates {
		if !matchesTaskPrompt(c.ResponseBody, want) {
			continue
		}
		if c.ConversationID == nil {
			continue
		}

		n, err := l.store.CountSubtasksOf(ctx, c.RequestID)
		if err != nil {
			l.log.Warn("count subtasks failed", "error", err)
			n = 0
		}

		requestID := c.RequestID
		return Result{
			ConversationID:      *c.ConversationID,
			BranchID:            subtaskBranchID(n + 1),
			ParentTaskRequestID: &requestID,
			IsSubtask:           true,
			MessageCount:        1,
		}, true
	}

	return Result{}, false
}

func subtaskBranchID(n int) string {
	return "subtask_" + strconv.Itoa(n)
}

// matchesTaskPrompt reports whether responseBody dispatched a Task
// tool-use block whose "prompt" input matches want after whitespace
// normalization.
func matchesTaskPrompt(responseBody []byte, want string) bool {
	if len(responseBody) == 0 {
		return false
	}
	content := gjson.GetBytes(responseBody, "content")
	if !content.IsArray() {
		return false
	}

	match := false
	content.ForEach(func(_, block gjson.Result) bool {
		if block.Get("type").String() != "tool_use" || block.Get("name").String() != "Task" {
			return true
		}
		prompt := block.Get("input.prompt").String()
		if normalizeWhitespace(prompt) == want {
			match = true
			return false
		}
		return true
	})
	return match
}

