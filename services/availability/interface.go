package availability

import (
	"context"
	"time"

	consultationRepo "appointa/database/repository/consultation"
	reservationRepo "appointa/database/repository/reservation"
	settingsRepo "appointa/database/repository/settings"
	"appointa/models"
	"appointa/services/calendar"
)

// Service computes offerable slots for a consultant.
type Service interface {
	// ResolveConfig normalizes the consultant's stored settings into the
	// canonical scheduling policy, applying defaults for anything absent.
	ResolveConfig(ctx context.Context, consultantID string) (*models.AvailabilityConfig, error)
	// GetAvailableSlots walks the configured schedule over [from, to],
	// drops candidates colliding with busy time or violating minimum
	// notice, and returns at most maxResults slots in chronological order.
	GetAvailableSlots(ctx context.Context, consultantID string, from, to time.Time, filters models.SlotFilters, maxResults int) ([]models.Slot, error)
	// IsSlotAvailable re-checks a single candidate start against the
	// schedule and current busy time.
	IsSlotAvailable(ctx context.Context, consultantID string, start time.Time) (bool, error)
}

// DefaultService implements Service.
type DefaultService struct {
	SettingsRepo     settingsRepo.SettingsRepository
	ConsultationRepo consultationRepo.ConsultationRepository
	ReservationRepo  reservationRepo.ReservationRepository
	Calendar         calendar.Service

	now func() time.Time
}

// NewDefaultService wires the availability service. cal may be nil when no
// external calendar is configured.
func NewDefaultService(settings settingsRepo.SettingsRepository, consultations consultationRepo.ConsultationRepository, reservations reservationRepo.ReservationRepository, cal calendar.Service) *DefaultService {
	return &DefaultService{
		SettingsRepo:     settings,
		ConsultationRepo: consultations,
		ReservationRepo:  reservations,
		Calendar:         cal,
		now:              time.Now,
	}
}
