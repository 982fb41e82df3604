package storage

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAnalysis_ReturnsExistingOnConflict(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	convID := uuid.New()
	first, err := store.CreateAnalysis(ctx, convID, "main", nil)
	require.NoError(t, err)

	second, err := store.CreateAnalysis(ctx, convID, "main", nil)
	require.ErrorIs(t, err, ErrAnalysisExists)
	assert.Equal(t, first.ID, second.ID)
}

func TestClaimNext_SkipsAlreadyClaimedRows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	convID := uuid.New()
	_, err := store.CreateAnalysis(ctx, convID, "main", nil)
	require.NoError(t, err)

	claimed, err := store.ClaimNext(ctx, 5)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, AnalysisProcessing, claimed[0].Status)

	againClaimed, err := store.ClaimNext(ctx, 5)
	require.NoError(t, err)
	for _, a := range againClaimed {
		assert.NotEqual(t, claimed[0].ID, a.ID)
	}
}

func TestRegenerate_ReplacesExistingRow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	convID := uuid.New()
	original, err := store.CreateAnalysis(ctx, convID, "main", nil)
	require.NoError(t, err)

	prompt := "focus on errors"
	fresh, err := store.Regenerate(ctx, convID, "main", &prompt)
	require.NoError(t, err)

	assert.NotEqual(t, original.ID, fresh.ID)
	assert.Equal(t, AnalysisPending, fresh.Status)

	got, err := store.GetAnalysis(ctx, convID, "main")
	require.NoError(t, err)
	assert.Equal(t, fresh.ID, got.ID)
	require.NotNil(t, got.CustomPrompt)
	assert.Equal(t, prompt, *got.CustomPrompt)
}

func TestCompleteAnalysis_SetsCompletedFields(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	convID := uuid.New()
	_, err := store.CreateAnalysis(ctx, convID, "main", nil)
	require.NoError(t, err)
	claimed, err := store.ClaimNext(ctx, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	require.NoError(t, store.CompleteAnalysis(ctx, &AnalysisResult{
		ID:            claimed[0].ID,
		ModelName:     "claude-analysis",
		Content:       "summary text",
		PromptTokens:  100,
		CompletionTokens: 50,
	}))

	got, err := store.GetAnalysis(ctx, convID, "main")
	require.NoError(t, err)
	assert.Equal(t, AnalysisCompleted, got.Status)
	require.NotNil(t, got.Content)
	assert.Equal(t, "summary text", *got.Content)
}
