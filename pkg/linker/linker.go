// Package linker implements the Conversation Linker: deciding a new
// request's conversation/branch placement from its message hashes and a
// best-effort sub-task look-back, never failing the request it's linking.
package linker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tarsyio/llmproxy/pkg/storage"
)

const subtaskLookback = 30 * time.Second

// Store is the slice of the storage layer the linker reads from. It is
// satisfied by *storage.Store; defining it here keeps the linker testable
// without a live database.
type Store interface {
	FindSubtaskCandidates(ctx context.Context, domain string, since time.Time) ([]*storage.Request, error)
	FindParentByCurrentHash(ctx context.Context, domain, parentHash string) (*storage.Request, error)
	CountChildrenOf(ctx context.Context, parentRequestID uuid.UUID) (int, error)
	CountSubtasksOf(ctx context.Context, parentTaskRequestID uuid.UUID) (int, error)
}

// Linker computes conversation linkage for new requests.
type Linker struct {
	store Store
	log   *slog.Logger
}

// New constructs a Linker over store.
func New(store Store) *Linker {
	return &Linker{store: store, log: slog.With("component", "conversation_linker")}
}

// Input is everything the linker needs about the new request.
type Input struct {
	Domain             string
	Timestamp          time.Time
	CurrentMessageHash string
	ParentMessageHash  string // empty when the hasher found only one user turn
	SystemHash         string
	FirstUserMessage   string // first user message text, whitespace-normalized by the caller
}

// Result is the linkage decision (§3 Request conversation-linkage fields).
type Result struct {
	ConversationID      uuid.UUID
	BranchID            string
	ParentRequestID     *uuid.UUID
	ParentTaskRequestID *uuid.UUID
	IsSubtask           bool
	MessageCount        int
}

// Link decides conversation placement for in. It never returns an error:
// any internal failure (a malformed lookup, an unreachable candidate)
// falls back to treating the request as the root of a brand new
// conversation, per the linker's best-effort contract.
func (l *Linker) Link(ctx context.Context, in Input) Result {
	if res, ok := l.trySubtask(ctx, in); ok {
		return res
	}
	if res, ok := l.tryParent(ctx, in); ok {
		return res
	}
	return newConversation()
}

func newConversation() Result {
	return Result{
		ConversationID: uuid.New(),
		BranchID:       "main",
		MessageCount:   1,
	}
}

func branchTimestamp(t time.Time) string {
	return fmt.Sprintf("branch-%s", t.UTC().Format("2006-01-02-15-04-05"))
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
