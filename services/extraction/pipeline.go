package extraction

import (
	"context"

	"appointa/models"
	ai "appointa/services/intelligence"
	"appointa/utils"
)

// TurnResult is what one conversational turn produced: the updated draft
// and whether the client just agreed to a proposed slot.
type TurnResult struct {
	Draft        *models.BookingDraft `json:"draft"`
	IsConfirming bool                 `json:"isConfirming"`
	HasAllData   bool                 `json:"hasAllData"`
}

// Pipeline runs extract-then-accumulate for each inbound turn.
type Pipeline struct {
	Extractor   ai.Extractor
	Accumulator *Accumulator
}

func NewPipeline(extractor ai.Extractor, acc *Accumulator) *Pipeline {
	return &Pipeline{Extractor: extractor, Accumulator: acc}
}

// ProcessTurn extracts fields from the transcript and merges them into the
// conversation's draft. An extractor failure means "no new data this turn":
// the prior draft is returned untouched and the conversation continues.
func (p *Pipeline) ProcessTurn(ctx context.Context, conversationKey, consultantID string, turns []models.ConversationMessage) (*TurnResult, error) {
	prior, err := p.Accumulator.Store.Load(ctx, conversationKey)
	if err != nil {
		return nil, err
	}

	partial, err := p.Extractor.Extract(ctx, turns, prior)
	if err != nil {
		utils.GetLogger().Sugar().Warnf("Extraction failed for conversation %s, keeping prior state: %v", conversationKey, err)
		if prior == nil {
			prior = &models.BookingDraft{ConversationKey: conversationKey, ConsultantID: consultantID}
		}
		return &TurnResult{Draft: prior, HasAllData: prior.HasAllData()}, nil
	}

	draft, err := p.Accumulator.Accumulate(ctx, conversationKey, consultantID, partial)
	if err != nil {
		return nil, err
	}
	return &TurnResult{
		Draft:        draft,
		IsConfirming: partial.IsConfirming,
		HasAllData:   draft.HasAllData(),
	}, nil
}
