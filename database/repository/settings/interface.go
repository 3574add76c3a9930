package settingsRepo

import (
	"context"

	"appointa/models"
)

// SettingsRepository is the store contract for per-consultant availability
// settings documents.
type SettingsRepository interface {
	// GetByConsultant returns the raw settings document, or nil when the
	// consultant has never saved one. Callers fall back to defaults.
	GetByConsultant(ctx context.Context, consultantID string) (*models.AvailabilitySettings, error)
	Upsert(ctx context.Context, s *models.AvailabilitySettings) error
	EnsureIndexes() error
}
