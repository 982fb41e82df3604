package linker

import "context"

// tryParent implements the parent lookup: find the most recent request in
// the tenant whose current_message_hash matches this request's
// parent_message_hash. If that request already has another child, this
// request starts a new branch off the same conversation; otherwise it
// continues the parent's branch.
func (l *Linker) tryParent(ctx context.Context, in Input) (Result, bool) {
	if in.ParentMessageHash == "" {
		return Result{}, false
	}

	parent, err := l.store.FindParentByCurrentHash(ctx, in.Domain, in.ParentMessageHash)
	if err != nil {
		l.log.Warn("parent lookup failed", "error", err)
		return Result{}, false
	}
	if parent == nil || parent.ConversationID == nil {
		return Result{}, false
	}

	branch := "main"
	if parent.BranchID != nil {
		branch = *parent.BranchID
	}

	childCount, err := l.store.CountChildrenOf(ctx, parent.RequestID)
	if err != nil {
		l.log.Warn("child count failed", "error", err)
		childCount = 0
	}
	if childCount > 0 {
		branch = branchTimestamp(in.Timestamp)
	}

	parentID := parent.RequestID
	return Result{
		ConversationID:  *parent.ConversationID,
		BranchID:        branch,
		ParentRequestID: &parentID,
		MessageCount:    parent.MessageCount + 1,
	}, true
}
