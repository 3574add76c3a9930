package extraction

import (
	"context"
	"fmt"
	"time"

	"appointa/models"
)

// Accumulator merges partial extractions into the per-conversation draft.
type Accumulator struct {
	Store DraftStore

	now func() time.Time
}

func NewAccumulator(store DraftStore) *Accumulator {
	return &Accumulator{Store: store, now: time.Now}
}

// Merge folds one partial extraction into the existing draft. A non-nil
// field in the partial always wins; a nil field leaves the prior value in
// place unless the field is named in Clear, which is the only way to wipe
// it. existing may be nil on the first turn.
func Merge(existing *models.BookingDraft, partial *models.ExtractionResult) models.ExtractionResult {
	cleared := make(map[string]bool, len(partial.Clear))
	for _, f := range partial.Clear {
		cleared[f] = true
	}

	pick := func(field string, newVal, oldVal *string) *string {
		if newVal != nil {
			return newVal
		}
		if cleared[field] {
			return nil
		}
		return oldVal
	}

	merged := models.ExtractionResult{
		IsConfirming: partial.IsConfirming,
		Confidence:   partial.Confidence,
	}
	if existing != nil {
		merged.Date = pick(models.FieldDate, partial.Date, existing.Date)
		merged.Time = pick(models.FieldTime, partial.Time, existing.Time)
		merged.Phone = pick(models.FieldPhone, partial.Phone, existing.Phone)
		merged.Email = pick(models.FieldEmail, partial.Email, existing.Email)
		merged.Name = pick(models.FieldName, partial.Name, existing.Name)
		if merged.Confidence == "" {
			merged.Confidence = existing.Confidence
		}
	} else {
		merged.Date = pick(models.FieldDate, partial.Date, nil)
		merged.Time = pick(models.FieldTime, partial.Time, nil)
		merged.Phone = pick(models.FieldPhone, partial.Phone, nil)
		merged.Email = pick(models.FieldEmail, partial.Email, nil)
		merged.Name = pick(models.FieldName, partial.Name, nil)
	}

	// Completeness is always recomputed from the merged fields, never
	// trusted from the partial.
	merged.HasAllData = merged.Date != nil && merged.Time != nil && merged.Phone != nil && merged.Email != nil
	return merged
}

// Accumulate loads the conversation's draft, merges the partial into it and
// saves the result with a fresh TTL.
func (a *Accumulator) Accumulate(ctx context.Context, conversationKey, consultantID string, partial *models.ExtractionResult) (*models.BookingDraft, error) {
	existing, err := a.Store.Load(ctx, conversationKey)
	if err != nil {
		return nil, err
	}

	merged := Merge(existing, partial)
	draft := &models.BookingDraft{
		ConversationKey: conversationKey,
		ConsultantID:    consultantID,
		Date:            merged.Date,
		Time:            merged.Time,
		Phone:           merged.Phone,
		Email:           merged.Email,
		Name:            merged.Name,
		Confidence:      merged.Confidence,
		UpdatedAt:       a.now(),
	}
	if err := a.Store.Save(ctx, draft); err != nil {
		return nil, err
	}
	return draft, nil
}

// Complete marks the conversation's draft inert after a successful booking.
func (a *Accumulator) Complete(ctx context.Context, conversationKey string) error {
	if err := a.Store.MarkCompleted(ctx, conversationKey, a.now()); err != nil {
		return fmt.Errorf("failed to complete extraction state: %w", err)
	}
	return nil
}
