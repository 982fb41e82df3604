package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insertUsageRequest(t *testing.T, store *Store, accountID, domain, model string, reqType RequestType, output int64, ts time.Time) {
	t.Helper()
	out := output
	total := output
	r := &Request{
		RequestID:     uuid.New(),
		Domain:        domain,
		AccountID:     accountID,
		Timestamp:     ts,
		UpstreamModel: model,
		RequestType:   reqType,
		RequestBody:   []byte(`{"messages":[]}`),
		MessageCount:  1,
		OutputTokens:  &out,
		TotalTokens:   &total,
	}
	require.NoError(t, store.InsertRequest(context.Background(), r))
}

// TestWindowUsage_OnlyCountsInference covers testable property 6: window
// usage equals SUM(output_tokens) over inference requests in the window,
// excluding query_evaluation/quota requests regardless of recency.
func TestWindowUsage_OnlyCountsInference(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	account := "acct-window-" + uuid.NewString()
	now := time.Now().UTC()

	insertUsageRequest(t, store, account, "acme.proxy.example", "claude-test", RequestTypeInference, 100, now)
	insertUsageRequest(t, store, account, "acme.proxy.example", "claude-test", RequestTypeInference, 50, now)
	insertUsageRequest(t, store, account, "acme.proxy.example", "claude-test", RequestTypeQueryEvaluation, 9999, now)
	insertUsageRequest(t, store, account, "acme.proxy.example", "claude-test", RequestTypeQuota, 9999, now)
	// Outside the window: should not be counted.
	insertUsageRequest(t, store, account, "acme.proxy.example", "claude-test", RequestTypeInference, 500, now.Add(-2*time.Hour))

	got, err := store.WindowUsage(ctx, UsageFilter{AccountID: account, WindowMinutes: 60})
	require.NoError(t, err)
	assert.Equal(t, int64(150), got.OutputTokens)
	assert.Equal(t, int64(2), got.RequestCount)
}

func TestWindowUsage_FiltersByDomainAndModel(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	account := "acct-window-filter-" + uuid.NewString()
	now := time.Now().UTC()

	insertUsageRequest(t, store, account, "a.proxy.example", "model-a", RequestTypeInference, 10, now)
	insertUsageRequest(t, store, account, "b.proxy.example", "model-b", RequestTypeInference, 20, now)

	got, err := store.WindowUsage(ctx, UsageFilter{AccountID: account, WindowMinutes: 60, Domain: "a.proxy.example"})
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.OutputTokens)

	got, err = store.WindowUsage(ctx, UsageFilter{AccountID: account, WindowMinutes: 60, Model: "model-b"})
	require.NoError(t, err)
	assert.Equal(t, int64(20), got.OutputTokens)
}

func TestDailyUsage_AggregatesPerDay(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	account := "acct-daily-" + uuid.NewString()
	now := time.Now().UTC()

	insertUsageRequest(t, store, account, "acme.proxy.example", "claude-test", RequestTypeInference, 30, now)
	insertUsageRequest(t, store, account, "acme.proxy.example", "claude-test", RequestTypeInference, 70, now)

	points, err := store.DailyUsage(ctx, account, 7, "", "")
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, int64(100), points[0].OutputTokens)
	assert.Equal(t, int64(2), points[0].RequestCount)
}

func TestDomainTokenStats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	domain := "stats-" + uuid.NewString() + ".proxy.example"
	insertUsageRequest(t, store, "acct-1", domain, "claude-test", RequestTypeInference, 40, time.Now().UTC())
	insertUsageRequest(t, store, "acct-2", domain, "claude-test", RequestTypeInference, 60, time.Now().UTC())

	stats, err := store.DomainTokenStats(ctx, domain)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, domain, stats[0].Domain)
	assert.Equal(t, int64(100), stats[0].OutputTokens)
	assert.Equal(t, int64(2), stats[0].RequestCount)
}
