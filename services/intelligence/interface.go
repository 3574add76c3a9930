package ai

import (
	"context"

	"appointa/models"
)

// Extractor turns a conversation transcript into the structured booking
// fields mentioned so far. Output is untrusted: callers validate formats
// before acting on it.
type Extractor interface {
	Extract(ctx context.Context, turns []models.ConversationMessage, draft *models.BookingDraft) (*models.ExtractionResult, error)
}
