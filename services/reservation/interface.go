package reservation

import (
	"context"
	"time"

	clientRepo "appointa/database/repository/client"
	consultationRepo "appointa/database/repository/consultation"
	reservationRepo "appointa/database/repository/reservation"
	"appointa/models"
	"appointa/services/calendar"
)

// ProposeRequest asks for a time-boxed hold on a slot.
type ProposeRequest struct {
	ConsultantID    string    `json:"consultantId"`
	ClientID        string    `json:"clientId"`
	ClientName      string    `json:"clientName,omitempty"`
	ClientPhone     string    `json:"clientPhone,omitempty"`
	ClientEmail     string    `json:"clientEmail,omitempty"`
	StartAt         time.Time `json:"startAt"`
	DurationMinutes int       `json:"durationMinutes,omitempty"`
	ConversationID  string    `json:"conversationId,omitempty"`
	Notes           string    `json:"notes,omitempty"`
}

// ConfirmRequest identifies the hold by token, or by conversation when the
// caller cannot echo the token back.
type ConfirmRequest struct {
	Token          string `json:"token,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	ClientID       string `json:"clientId,omitempty"`
}

// ReminderEnqueuer schedules the pre-appointment reminder. Best-effort from
// the confirm path's point of view.
type ReminderEnqueuer interface {
	EnqueueReminder(ctx context.Context, c *models.Consultation) error
}

// Service owns the hold state machine from proposal to durable booking.
type Service interface {
	// Propose creates a token-backed hold after rejecting collisions with
	// bookings and other live holds. Returns only the token.
	Propose(ctx context.Context, req ProposeRequest) (string, error)
	// Confirm finalizes the hold into a durable booking. Replay with the
	// same token returns the already-created booking unchanged.
	Confirm(ctx context.Context, req ConfirmRequest) (*models.Consultation, error)
	// CancelExpired sweeps overdue live holds to expired.
	CancelExpired(ctx context.Context) (int64, error)
	// GetStatus lists the client's bookings for a calendar month.
	GetStatus(ctx context.Context, clientID string, month, year int) ([]models.Consultation, error)
}

// DefaultService implements Service. Calendar and Reminders may be nil; both
// are best-effort stages after the booking is durable.
type DefaultService struct {
	ReservationRepo  reservationRepo.ReservationRepository
	ConsultationRepo consultationRepo.ConsultationRepository
	ClientRepo       clientRepo.ClientRepository
	Calendar         calendar.Service
	Reminders        ReminderEnqueuer

	holdTTL time.Duration
	// loc anchors calendar-month boundaries for the monthly cap and the
	// status listing, so a booking near midnight lands in the same month
	// for both.
	loc *time.Location
	now func() time.Time
}

// NewDefaultService wires the reservation manager.
func NewDefaultService(reservations reservationRepo.ReservationRepository, consultations consultationRepo.ConsultationRepository, clients clientRepo.ClientRepository, cal calendar.Service, reminders ReminderEnqueuer, holdTTL time.Duration) *DefaultService {
	if holdTTL <= 0 {
		holdTTL = 10 * time.Minute
	}
	loc, err := time.LoadLocation(defaultMonthZone)
	if err != nil {
		loc = time.UTC
	}
	return &DefaultService{
		ReservationRepo:  reservations,
		ConsultationRepo: consultations,
		ClientRepo:       clients,
		Calendar:         cal,
		Reminders:        reminders,
		holdTTL:          holdTTL,
		loc:              loc,
		now:              time.Now,
	}
}
