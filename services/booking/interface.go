package booking

import (
	"context"
	"time"

	consultationRepo "appointa/database/repository/consultation"
	"appointa/models"
	"appointa/services/calendar"
)

// AttendeeResult reports the outcome of an add-attendees call.
type AttendeeResult struct {
	Added   []string `json:"added"`
	Skipped []string `json:"skipped"`
}

// LifecycleService mutates already-confirmed bookings.
type LifecycleService interface {
	// Modify reschedules the booking after re-checking the target slot for
	// conflicts (excluding the booking being moved).
	Modify(ctx context.Context, bookingID string, newStart time.Time, newDuration int) (*models.Consultation, error)
	// Cancel soft-deletes the booking and releases its calendar event.
	Cancel(ctx context.Context, bookingID string) error
	// AddAttendees merges emails into the booking, idempotent against
	// attendees already present.
	AddAttendees(ctx context.Context, bookingID string, emails []string) (*AttendeeResult, error)
}

// DefaultLifecycleService implements LifecycleService. Calendar sync is
// best-effort on every path.
type DefaultLifecycleService struct {
	ConsultationRepo consultationRepo.ConsultationRepository
	Calendar         calendar.Service

	// replayWindow bounds how far back an identical lastCompletedAction
	// still counts as "already applied".
	replayWindow time.Duration
	now          func() time.Time
}

// NewDefaultLifecycleService wires the lifecycle ops.
func NewDefaultLifecycleService(consultations consultationRepo.ConsultationRepository, cal calendar.Service) *DefaultLifecycleService {
	return &DefaultLifecycleService{
		ConsultationRepo: consultations,
		Calendar:         cal,
		replayWindow:     5 * time.Minute,
		now:              time.Now,
	}
}
