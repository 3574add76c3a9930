package extraction

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appointa/models"
)

func strptr(s string) *string { return &s }

type memDraftStore struct {
	drafts map[string]*models.BookingDraft
}

func newMemDraftStore() *memDraftStore {
	return &memDraftStore{drafts: map[string]*models.BookingDraft{}}
}

func (m *memDraftStore) Load(ctx context.Context, key string) (*models.BookingDraft, error) {
	d, ok := m.drafts[key]
	if !ok || d.CompletedAt != nil {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (m *memDraftStore) Save(ctx context.Context, draft *models.BookingDraft) error {
	cp := *draft
	m.drafts[draft.ConversationKey] = &cp
	return nil
}

func (m *memDraftStore) MarkCompleted(ctx context.Context, key string, at time.Time) error {
	if d, ok := m.drafts[key]; ok {
		d.CompletedAt = &at
	}
	return nil
}

func TestMergeTwoTurnScenario(t *testing.T) {
	turn1 := Merge(nil, &models.ExtractionResult{Date: strptr("2025-11-06")})
	assert.Equal(t, "2025-11-06", *turn1.Date)
	assert.Nil(t, turn1.Time)
	assert.False(t, turn1.HasAllData)

	existing := &models.BookingDraft{Date: turn1.Date}
	turn2 := Merge(existing, &models.ExtractionResult{Time: strptr("15:00")})
	assert.Equal(t, "2025-11-06", *turn2.Date)
	assert.Equal(t, "15:00", *turn2.Time)
	assert.False(t, turn2.HasAllData)
}

func TestMergeMonotonicity(t *testing.T) {
	draft := &models.BookingDraft{}
	partials := []*models.ExtractionResult{
		{Date: strptr("2025-11-06")},
		{Time: strptr("15:00")},
		{},
		{Phone: strptr("+391234567890"), Email: strptr("lead@example.com")},
		{Date: strptr("2025-11-07")}, // updated, not nulled
		{},
	}

	for _, p := range partials {
		merged := Merge(draft, p)
		draft = &models.BookingDraft{
			Date: merged.Date, Time: merged.Time,
			Phone: merged.Phone, Email: merged.Email, Name: merged.Name,
		}
	}

	require.NotNil(t, draft.Date)
	assert.Equal(t, "2025-11-07", *draft.Date)
	assert.Equal(t, "15:00", *draft.Time)
	assert.Equal(t, "+391234567890", *draft.Phone)
	assert.Equal(t, "lead@example.com", *draft.Email)
}

func TestMergeHasAllDataRecomputed(t *testing.T) {
	existing := &models.BookingDraft{
		Date:  strptr("2025-11-06"),
		Time:  strptr("15:00"),
		Phone: strptr("+391234567890"),
	}
	// The partial lies about completeness; the merge must not trust it.
	merged := Merge(existing, &models.ExtractionResult{HasAllData: true})
	assert.False(t, merged.HasAllData)

	merged = Merge(existing, &models.ExtractionResult{Email: strptr("lead@example.com")})
	assert.True(t, merged.HasAllData)
}

func TestMergeExplicitClear(t *testing.T) {
	existing := &models.BookingDraft{
		Date: strptr("2025-11-06"),
		Time: strptr("15:00"),
	}
	merged := Merge(existing, &models.ExtractionResult{Clear: []string{models.FieldDate}})
	assert.Nil(t, merged.Date)
	assert.Equal(t, "15:00", *merged.Time)

	// A new value and a clear for the same field: the value wins.
	merged = Merge(existing, &models.ExtractionResult{
		Date:  strptr("2025-11-10"),
		Clear: []string{models.FieldDate},
	})
	assert.Equal(t, "2025-11-10", *merged.Date)
}

func TestAccumulateAndComplete(t *testing.T) {
	store := newMemDraftStore()
	acc := NewAccumulator(store)
	acc.now = func() time.Time { return time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	draft, err := acc.Accumulate(ctx, "conv-1", "cons-1", &models.ExtractionResult{Date: strptr("2025-11-06")})
	require.NoError(t, err)
	assert.Equal(t, "2025-11-06", *draft.Date)

	draft, err = acc.Accumulate(ctx, "conv-1", "cons-1", &models.ExtractionResult{Time: strptr("15:00")})
	require.NoError(t, err)
	assert.Equal(t, "2025-11-06", *draft.Date)
	assert.Equal(t, "15:00", *draft.Time)

	require.NoError(t, acc.Complete(ctx, "conv-1"))

	// Completed drafts are inert: the next turn starts clean.
	draft, err = acc.Accumulate(ctx, "conv-1", "cons-1", &models.ExtractionResult{Phone: strptr("+391234567890")})
	require.NoError(t, err)
	assert.Nil(t, draft.Date)
	assert.Equal(t, "+391234567890", *draft.Phone)
}

type stubExtractor struct {
	result *models.ExtractionResult
	err    error
}

func (s *stubExtractor) Extract(ctx context.Context, turns []models.ConversationMessage, draft *models.BookingDraft) (*models.ExtractionResult, error) {
	return s.result, s.err
}

func TestProcessTurnExtractorFailureKeepsPriorState(t *testing.T) {
	store := newMemDraftStore()
	acc := NewAccumulator(store)
	ctx := context.Background()

	_, err := acc.Accumulate(ctx, "conv-1", "cons-1", &models.ExtractionResult{Date: strptr("2025-11-06")})
	require.NoError(t, err)

	p := NewPipeline(&stubExtractor{err: assert.AnError}, acc)
	res, err := p.ProcessTurn(ctx, "conv-1", "cons-1", []models.ConversationMessage{{Sender: "client", Text: "hello"}})
	require.NoError(t, err)
	require.NotNil(t, res.Draft)
	assert.Equal(t, "2025-11-06", *res.Draft.Date)
	assert.False(t, res.IsConfirming)
}

func TestProcessTurnMergesExtraction(t *testing.T) {
	store := newMemDraftStore()
	acc := NewAccumulator(store)
	ctx := context.Background()

	_, err := acc.Accumulate(ctx, "conv-1", "cons-1", &models.ExtractionResult{Date: strptr("2025-11-06")})
	require.NoError(t, err)

	p := NewPipeline(&stubExtractor{result: &models.ExtractionResult{
		Time:         strptr("15:00"),
		IsConfirming: true,
	}}, acc)
	res, err := p.ProcessTurn(ctx, "conv-1", "cons-1", nil)
	require.NoError(t, err)
	assert.True(t, res.IsConfirming)
	assert.Equal(t, "2025-11-06", *res.Draft.Date)
	assert.Equal(t, "15:00", *res.Draft.Time)
	assert.False(t, res.HasAllData)
}
