package consultationRepo

import (
	"context"
	"time"

	"appointa/models"
)

// ConsultationRepository is the store contract for durable bookings.
// Uniqueness of (consultant_id, scheduled_at) among non-cancelled rows is
// enforced by a partial unique index; Create surfaces it as ErrDuplicateSlot.
type ConsultationRepository interface {
	Create(ctx context.Context, c *models.Consultation) error
	GetByID(ctx context.Context, id string) (*models.Consultation, error)
	// ExistsAt reports a non-cancelled booking at exactly the given instant.
	ExistsAt(ctx context.Context, consultantID string, at time.Time) (bool, error)
	// ListOverlapping returns non-cancelled bookings whose [scheduled_at,
	// scheduled_at+duration) window intersects [from, to).
	ListOverlapping(ctx context.Context, consultantID string, from, to time.Time) ([]models.Consultation, error)
	// ListForClientInRange returns the client's scheduled and completed
	// bookings with scheduled_at in [from, to].
	ListForClientInRange(ctx context.Context, clientID string, from, to time.Time) ([]models.Consultation, error)
	// HasConflict reports a non-cancelled booking (other than excludeID)
	// overlapping [from, to).
	HasConflict(ctx context.Context, consultantID string, from, to time.Time, excludeID string) (bool, error)
	UpdateSchedule(ctx context.Context, id string, newStart time.Time, newDuration int, action *models.CompletedAction) error
	Cancel(ctx context.Context, id string, action *models.CompletedAction) error
	AddAttendees(ctx context.Context, id string, emails []string, action *models.CompletedAction) error
	SetCalendarRef(ctx context.Context, id, googleEventID, meetLink string) error
	EnsureIndexes() error
}
