// Package tokenusage implements the §4.F rolling-window token accounting
// contract as a thin façade over the storage layer's aggregation query.
package tokenusage

import (
	"context"

	"github.com/tarsyio/llmproxy/pkg/storage"
)

// Accountant answers "how many tokens in the trailing window" for an
// account, optionally narrowed by domain/model.
type Accountant struct {
	store *storage.Store
}

// New constructs an Accountant backed by store.
func New(store *storage.Store) *Accountant {
	return &Accountant{store: store}
}

// Query mirrors §4.F's contract parameters.
type Query struct {
	AccountID     string
	WindowMinutes int
	Domain        string
	Model         string
}

// Current returns the trailing-window aggregate for q.
func (a *Accountant) Current(ctx context.Context, q Query) (*storage.UsageWindow, error) {
	return a.store.WindowUsage(ctx, storage.UsageFilter{
		AccountID:     q.AccountID,
		WindowMinutes: q.WindowMinutes,
		Domain:        q.Domain,
		Model:         q.Model,
	})
}

// Daily returns a per-day aggregation over the trailing `days` days.
func (a *Accountant) Daily(ctx context.Context, accountID string, days int, domain, model string) ([]*storage.DailyUsagePoint, error) {
	return a.store.DailyUsage(ctx, accountID, days, domain, model)
}
