package reservation

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	consultationRepo "appointa/database/repository/consultation"
	"appointa/models"
	"appointa/services/calendar"
	"appointa/utils"
)

const defaultDurationMinutes = 60

// defaultMonthZone anchors calendar-month boundaries for the monthly limit
// and the status listing. Matches the availability resolver's default
// timezone.
const defaultMonthZone = "Europe/Rome"

// monthWindow returns the inclusive bounds of the given calendar month in
// the service's zone.
func (s *DefaultService) monthWindow(year int, month time.Month) (time.Time, time.Time) {
	from := time.Date(year, month, 1, 0, 0, 0, 0, s.loc)
	return from, from.AddDate(0, 1, 0).Add(-time.Second)
}

// newToken returns a 32-hex-character unguessable hold token.
func newToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate reservation token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Propose creates a token-backed hold on the slot. Collisions with existing
// bookings or other conversations' live holds reject softly; a prior live
// hold for the same conversation is superseded so the newest intent wins.
func (s *DefaultService) Propose(ctx context.Context, req ProposeRequest) (string, error) {
	now := s.now()
	if !req.StartAt.After(now) {
		return "", NewSoftFail(CodePastDate, "The requested time is in the past.", "Pick a future date and time.")
	}
	if req.DurationMinutes <= 0 {
		req.DurationMinutes = defaultDurationMinutes
	}

	if err := s.checkMonthlyLimit(ctx, req.ClientID, req.StartAt); err != nil {
		return "", err
	}

	taken, err := s.ConsultationRepo.ExistsAt(ctx, req.ConsultantID, req.StartAt)
	if err != nil {
		return "", fmt.Errorf("failed to check slot occupancy: %w", err)
	}
	if taken {
		return "", NewSoftFail(CodeSlotTaken, "That time is already booked.", "Ask for the available slots and pick another one.")
	}

	held, err := s.ReservationRepo.HasLiveHoldAt(ctx, req.ConsultantID, req.StartAt, now, req.ConversationID)
	if err != nil {
		return "", fmt.Errorf("failed to check live holds: %w", err)
	}
	if held {
		return "", NewSoftFail(CodePendingExists, "Someone else is completing a booking for that time.", "Try again in a few minutes or pick a different slot.")
	}

	if req.ConversationID != "" {
		superseded, err := s.ReservationRepo.SupersedeForConversation(ctx, req.ConversationID)
		if err != nil {
			return "", fmt.Errorf("failed to supersede prior holds: %w", err)
		}
		if superseded > 0 {
			utils.GetLogger().Debug("Superseded prior holds",
				zap.String("conversationId", req.ConversationID),
				zap.Int64("count", superseded))
		}
	}

	token, err := newToken()
	if err != nil {
		return "", err
	}

	hold := &models.PendingReservation{
		ID:              uuid.New().String(),
		Token:           token,
		ClientID:        req.ClientID,
		ClientName:      req.ClientName,
		ClientPhone:     req.ClientPhone,
		ClientEmail:     req.ClientEmail,
		ConsultantID:    req.ConsultantID,
		StartAt:         req.StartAt,
		DurationMinutes: req.DurationMinutes,
		Status:          models.ReservationAwaitingConfirm,
		Notes:           req.Notes,
		ConversationID:  req.ConversationID,
		ExpiresAt:       now.Add(s.holdTTL),
		CreatedAt:       now,
	}
	if err := s.ReservationRepo.Create(ctx, hold); err != nil {
		return "", fmt.Errorf("failed to create reservation hold: %w", err)
	}
	return token, nil
}

// checkMonthlyLimit rejects the proposal when the client already reached
// their per-month session cap. Unknown clients and a zero cap pass through.
func (s *DefaultService) checkMonthlyLimit(ctx context.Context, clientID string, startAt time.Time) error {
	if clientID == "" {
		return nil
	}
	client, err := s.ClientRepo.GetByID(ctx, clientID)
	if err != nil {
		return fmt.Errorf("failed to load client: %w", err)
	}
	if client == nil || client.MonthlyConsultationLimit <= 0 {
		return nil
	}

	local := startAt.In(s.loc)
	monthStart, monthEnd := s.monthWindow(local.Year(), local.Month())
	existing, err := s.ConsultationRepo.ListForClientInRange(ctx, clientID, monthStart, monthEnd)
	if err != nil {
		return fmt.Errorf("failed to count monthly bookings: %w", err)
	}
	if len(existing) >= client.MonthlyConsultationLimit {
		return NewSoftFail(CodeLimitReached,
			fmt.Sprintf("You already have %d consultation(s) booked this month.", len(existing)),
			"Pick a date in the next month or cancel an existing booking first.")
	}
	return nil
}

// Confirm finalizes a hold into a durable booking. The guarded status
// transition in the store is the first linearization point; the unique slot
// index on bookings is the second. Everything before them is advisory.
func (s *DefaultService) Confirm(ctx context.Context, req ConfirmRequest) (*models.Consultation, error) {
	now := s.now()

	res, err := s.lookupHold(ctx, req, now)
	if err != nil {
		return nil, err
	}

	// Safe replay: a confirmed hold that already carries the booking
	// back-link returns the same booking with no further mutation.
	if res.Status == models.ReservationConfirmed && res.ConsultationID != "" {
		booking, err := s.ConsultationRepo.GetByID(ctx, res.ConsultationID)
		if err != nil {
			return nil, fmt.Errorf("failed to load booking for replay: %w", err)
		}
		if booking == nil {
			return nil, fmt.Errorf("reservation %s references missing booking %s", res.ID, res.ConsultationID)
		}
		return booking, nil
	}

	switch res.Status {
	case models.ReservationAwaitingConfirm:
		// proceed
	case models.ReservationExpired:
		return nil, NewSoftFail(CodeExpired, "This reservation has expired.", "Ask for the available slots again to get a fresh hold.")
	default:
		return nil, NewSoftFail(CodeAlreadyResolved, "This reservation was already resolved.", "Start a new booking if you still need the appointment.")
	}

	if req.ClientID != "" && res.ClientID != "" && req.ClientID != res.ClientID {
		return nil, NewSoftFail(CodeNotOwner, "This reservation belongs to a different client.", "")
	}

	if !res.ExpiresAt.After(now) {
		if err := s.ReservationRepo.MarkStatus(ctx, res.ID, models.ReservationExpired); err != nil {
			utils.GetLogger().Sugar().Warnf("Failed to mark reservation %s expired: %v", res.ID, err)
		}
		return nil, NewSoftFail(CodeExpired, "The 10-minute hold on this slot has passed.", "Ask for the available slots again to get a fresh hold.")
	}

	ok, err := s.ReservationRepo.ConfirmTransition(ctx, res.ID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm reservation: %w", err)
	}
	if !ok {
		return nil, NewSoftFail(CodeAlreadyResolved, "This reservation was just resolved by another request.", "Check your bookings before retrying.")
	}

	booking := &models.Consultation{
		ID:              uuid.New().String(),
		ConsultantID:    res.ConsultantID,
		ClientID:        res.ClientID,
		ClientName:      res.ClientName,
		ClientPhone:     res.ClientPhone,
		ClientEmail:     res.ClientEmail,
		ScheduledAt:     res.StartAt,
		DurationMinutes: res.DurationMinutes,
		Status:          models.ConsultationScheduled,
		Notes:           res.Notes,
		Source:          "agent",
		ConversationID:  res.ConversationID,
		ConfirmedAt:     &now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.ConsultationRepo.Create(ctx, booking); err != nil {
		if errors.Is(err, consultationRepo.ErrDuplicateSlot) {
			// A booking for this slot landed through another path between
			// the advisory checks and the insert. Roll the hold forward to
			// cancelled so no confirmed-without-booking row survives.
			if markErr := s.ReservationRepo.MarkStatus(ctx, res.ID, models.ReservationCancelled); markErr != nil {
				utils.GetLogger().Sugar().Errorf("Failed to cancel reservation %s after slot race: %v", res.ID, markErr)
			}
			return nil, NewSoftFail(CodeSlotTaken, "That time was booked a moment ago.", "Ask for the available slots and pick another one.")
		}
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	if err := s.ReservationRepo.SetConsultationRef(ctx, res.ID, booking.ID); err != nil {
		utils.GetLogger().Sugar().Warnf("Failed to back-link booking %s onto reservation %s: %v", booking.ID, res.ID, err)
	}

	s.syncCalendar(ctx, booking)
	s.enqueueReminder(ctx, booking)
	return booking, nil
}

// lookupHold resolves the target reservation from a token or, failing that,
// the conversation's newest live hold.
func (s *DefaultService) lookupHold(ctx context.Context, req ConfirmRequest, now time.Time) (*models.PendingReservation, error) {
	if req.Token != "" {
		res, err := s.ReservationRepo.GetByToken(ctx, req.Token)
		if err != nil {
			return nil, fmt.Errorf("failed to look up reservation: %w", err)
		}
		if res == nil {
			return nil, NewSoftFail(CodeReservationNotFound, "No reservation matches that token.", "Ask for the available slots to start over.")
		}
		return res, nil
	}
	if req.ConversationID != "" {
		res, err := s.ReservationRepo.LatestAwaitingForConversation(ctx, req.ConversationID, now)
		if err != nil {
			return nil, fmt.Errorf("failed to look up reservation for conversation: %w", err)
		}
		if res == nil {
			return nil, NewSoftFail(CodeReservationNotFound, "There is no pending reservation for this conversation.", "Propose a slot first, then confirm it.")
		}
		return res, nil
	}
	return nil, NewSoftFail(CodeReservationNotFound, "A token or conversation id is required to confirm.", "")
}

// syncCalendar creates the external event; failures are logged, never fatal.
func (s *DefaultService) syncCalendar(ctx context.Context, booking *models.Consultation) {
	if s.Calendar == nil {
		return
	}
	ref, err := s.Calendar.CreateEvent(ctx, booking.ConsultantID, calendar.EventInput{
		Summary:         fmt.Sprintf("Consultation with %s", firstNonEmpty(booking.ClientName, booking.ClientID, "client")),
		Description:     booking.Notes,
		Start:           booking.ScheduledAt,
		DurationMinutes: booking.DurationMinutes,
		Attendees:       attendeeList(booking),
	})
	if err != nil {
		utils.GetLogger().Sugar().Warnf("Calendar event creation failed for booking %s: %v", booking.ID, err)
		return
	}
	booking.GoogleEventID = ref.EventID
	booking.MeetLink = ref.MeetLink
	if err := s.ConsultationRepo.SetCalendarRef(ctx, booking.ID, ref.EventID, ref.MeetLink); err != nil {
		utils.GetLogger().Sugar().Warnf("Failed to persist calendar ref on booking %s: %v", booking.ID, err)
	}
}

func (s *DefaultService) enqueueReminder(ctx context.Context, booking *models.Consultation) {
	if s.Reminders == nil {
		return
	}
	if err := s.Reminders.EnqueueReminder(ctx, booking); err != nil {
		utils.GetLogger().Sugar().Warnf("Failed to enqueue reminder for booking %s: %v", booking.ID, err)
	}
}

// CancelExpired sweeps overdue live holds. Cleanup only; Confirm re-checks
// expiry itself.
func (s *DefaultService) CancelExpired(ctx context.Context) (int64, error) {
	n, err := s.ReservationRepo.ExpireOverdue(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to expire overdue holds: %w", err)
	}
	if n > 0 {
		utils.GetLogger().Debug("Expired overdue reservation holds", zap.Int64("count", n))
	}
	return n, nil
}

// GetStatus lists the client's scheduled and completed bookings for one
// calendar month.
func (s *DefaultService) GetStatus(ctx context.Context, clientID string, month, year int) ([]models.Consultation, error) {
	if month < 1 || month > 12 {
		return nil, NewSoftFail(CodeInvalidMonth, fmt.Sprintf("%d is not a valid month.", month), "Use a month between 1 and 12.")
	}
	currentYear := s.now().Year()
	if year < currentYear-1 || year > currentYear+2 {
		return nil, NewSoftFail(CodeInvalidYear, fmt.Sprintf("%d is out of range.", year), fmt.Sprintf("Use a year between %d and %d.", currentYear-1, currentYear+2))
	}

	from, to := s.monthWindow(year, time.Month(month))
	bookings, err := s.ConsultationRepo.ListForClientInRange(ctx, clientID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func attendeeList(booking *models.Consultation) []string {
	if booking.ClientEmail != "" {
		return []string{booking.ClientEmail}
	}
	return nil
}
