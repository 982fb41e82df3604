package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRequest() *Request {
	return &Request{
		RequestID:     uuid.New(),
		Domain:        "acme.proxy.example",
		AccountID:     "acct-1",
		Timestamp:     time.Now().UTC(),
		UpstreamModel: "claude-test",
		RequestType:   RequestTypeInference,
		RequestBody:   []byte(`{"messages":[]}`),
		MessageCount:  1,
	}
}

func TestInsertAndGetRequest(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	r := newTestRequest()
	require.NoError(t, store.InsertRequest(ctx, r))

	got, err := store.GetRequest(ctx, r.RequestID)
	require.NoError(t, err)
	assert.Equal(t, r.Domain, got.Domain)
	assert.Equal(t, r.RequestType, got.RequestType)
	assert.Nil(t, got.ResponseBody)
}

func TestPatchRequest_FillsResponseFields(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	r := newTestRequest()
	require.NoError(t, store.InsertRequest(ctx, r))

	in, out, total := int64(10), int64(20), int64(30)
	require.NoError(t, store.PatchRequest(ctx, &RequestPatch{
		RequestID:    r.RequestID,
		ResponseBody: []byte(`{"content":[]}`),
		InputTokens:  &in,
		OutputTokens: &out,
		TotalTokens:  &total,
	}))

	got, err := store.GetRequest(ctx, r.RequestID)
	require.NoError(t, err)
	require.NotNil(t, got.ResponseBody)
	require.NotNil(t, got.TotalTokens)
	assert.Equal(t, total, *got.TotalTokens)
}

func TestFindParentByCurrentHash(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	parent := newTestRequest()
	hash := "hash-parent-1"
	parent.CurrentMessageHash = &hash
	require.NoError(t, store.InsertRequest(ctx, parent))

	found, err := store.FindParentByCurrentHash(ctx, parent.Domain, hash)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, parent.RequestID, found.RequestID)
}

func TestFindParentByCurrentHash_NoMatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	found, err := store.FindParentByCurrentHash(ctx, "nowhere.example", "no-such-hash")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestListRequests_FiltersByDomain(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	r1 := newTestRequest()
	r1.Domain = "filter-a.example"
	r2 := newTestRequest()
	r2.Domain = "filter-b.example"
	require.NoError(t, store.InsertRequest(ctx, r1))
	require.NoError(t, store.InsertRequest(ctx, r2))

	got, err := store.ListRequests(ctx, RequestFilter{Domain: "filter-a.example", Limit: 10})
	require.NoError(t, err)
	for _, r := range got {
		assert.Equal(t, "filter-a.example", r.Domain)
	}
}
