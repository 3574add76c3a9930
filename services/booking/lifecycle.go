package booking

import (
	"context"
	"fmt"
	"time"

	"appointa/models"
	"appointa/services/reservation"
	"appointa/utils"
)

// Modify reschedules a booking. Replaying the exact same move inside the
// replay window returns the booking unchanged; the upstream extraction can
// re-derive the same intent across several turns.
func (s *DefaultLifecycleService) Modify(ctx context.Context, bookingID string, newStart time.Time, newDuration int) (*models.Consultation, error) {
	b, err := s.ConsultationRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking: %w", err)
	}
	if b == nil {
		return nil, reservation.NewSoftFail(reservation.CodeBookingNotFound, "No booking with that id exists.", "")
	}
	if b.Status != models.ConsultationScheduled {
		return nil, reservation.NewSoftFail(reservation.CodeBookingAlreadyFinal, "This booking can no longer be changed.", "Book a new appointment instead.")
	}
	if newDuration <= 0 {
		newDuration = b.DurationMinutes
	}

	now := s.now()
	if s.recentlyApplied(b, &models.CompletedAction{
		Type:     models.ActionModify,
		NewStart: newStart.Format(time.RFC3339),
	}, now) {
		return b, nil
	}

	if !newStart.After(now) {
		return nil, reservation.NewSoftFail(reservation.CodePastDate, "The new time is in the past.", "Pick a future date and time.")
	}

	newEnd := newStart.Add(time.Duration(newDuration) * time.Minute)
	conflict, err := s.ConsultationRepo.HasConflict(ctx, b.ConsultantID, newStart, newEnd, b.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check conflicts for reschedule: %w", err)
	}
	if conflict {
		return nil, reservation.NewSoftFail(reservation.CodeSlotTaken, "That time is already booked.", "Ask for the available slots and pick another one.")
	}

	action := &models.CompletedAction{
		Type:        models.ActionModify,
		CompletedAt: now,
		OldStart:    b.ScheduledAt.Format(time.RFC3339),
		NewStart:    newStart.Format(time.RFC3339),
	}
	if err := s.ConsultationRepo.UpdateSchedule(ctx, b.ID, newStart, newDuration, action); err != nil {
		return nil, fmt.Errorf("failed to reschedule booking: %w", err)
	}

	if s.Calendar != nil && b.GoogleEventID != "" {
		if err := s.Calendar.UpdateEvent(ctx, b.ConsultantID, b.GoogleEventID, newStart, newDuration); err != nil {
			utils.GetLogger().Sugar().Warnf("Calendar update failed for booking %s: %v", b.ID, err)
		}
	}

	b.ScheduledAt = newStart
	b.DurationMinutes = newDuration
	b.LastCompletedAction = action
	b.UpdatedAt = now
	return b, nil
}

// Cancel soft-deletes the booking. Cancelling an already-cancelled booking
// is a no-op.
func (s *DefaultLifecycleService) Cancel(ctx context.Context, bookingID string) error {
	b, err := s.ConsultationRepo.GetByID(ctx, bookingID)
	if err != nil {
		return fmt.Errorf("failed to load booking: %w", err)
	}
	if b == nil {
		return reservation.NewSoftFail(reservation.CodeBookingNotFound, "No booking with that id exists.", "")
	}
	if b.Status == models.ConsultationCancelled {
		return nil
	}

	action := &models.CompletedAction{
		Type:        models.ActionCancel,
		CompletedAt: s.now(),
		OldStart:    b.ScheduledAt.Format(time.RFC3339),
	}
	if err := s.ConsultationRepo.Cancel(ctx, b.ID, action); err != nil {
		return fmt.Errorf("failed to cancel booking: %w", err)
	}

	if s.Calendar != nil && b.GoogleEventID != "" {
		if err := s.Calendar.DeleteEvent(ctx, b.ConsultantID, b.GoogleEventID); err != nil {
			utils.GetLogger().Sugar().Warnf("Calendar delete failed for booking %s: %v", b.ID, err)
		}
	}
	return nil
}

// AddAttendees merges emails into the booking's attendee list. Emails
// already present are skipped, never duplicated.
func (s *DefaultLifecycleService) AddAttendees(ctx context.Context, bookingID string, emails []string) (*AttendeeResult, error) {
	b, err := s.ConsultationRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking: %w", err)
	}
	if b == nil {
		return nil, reservation.NewSoftFail(reservation.CodeBookingNotFound, "No booking with that id exists.", "")
	}
	if b.Status == models.ConsultationCancelled {
		return nil, reservation.NewSoftFail(reservation.CodeBookingAlreadyFinal, "This booking was cancelled.", "Book a new appointment instead.")
	}

	present := make(map[string]bool, len(b.Attendees))
	for _, a := range b.Attendees {
		present[a] = true
	}

	result := &AttendeeResult{}
	for _, email := range emails {
		if present[email] {
			result.Skipped = append(result.Skipped, email)
			continue
		}
		result.Added = append(result.Added, email)
	}
	if len(result.Added) == 0 {
		return result, nil
	}

	action := &models.CompletedAction{
		Type:           models.ActionAddAttendees,
		CompletedAt:    s.now(),
		AttendeesAdded: result.Added,
	}
	if err := s.ConsultationRepo.AddAttendees(ctx, b.ID, result.Added, action); err != nil {
		return nil, fmt.Errorf("failed to add attendees: %w", err)
	}

	if s.Calendar != nil && b.GoogleEventID != "" {
		if _, _, err := s.Calendar.AddAttendees(ctx, b.ConsultantID, b.GoogleEventID, result.Added); err != nil {
			utils.GetLogger().Sugar().Warnf("Calendar attendee update failed for booking %s: %v", b.ID, err)
		}
	}
	return result, nil
}

// recentlyApplied reports whether the booking's last completed action is the
// same intent applied inside the replay window.
func (s *DefaultLifecycleService) recentlyApplied(b *models.Consultation, intent *models.CompletedAction, now time.Time) bool {
	last := b.LastCompletedAction
	if last == nil || last.Type != intent.Type {
		return false
	}
	if now.Sub(last.CompletedAt) > s.replayWindow {
		return false
	}
	switch intent.Type {
	case models.ActionModify:
		return last.NewStart == intent.NewStart
	case models.ActionCancel:
		return true
	case models.ActionAddAttendees:
		return sameStringSet(last.AttendeesAdded, intent.AttendeesAdded)
	}
	return false
}

func sameStringSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	for _, v := range b {
		if !set[v] {
			return false
		}
	}
	return true
}
