package reservationRepo

import (
	"context"
	"time"

	"appointa/models"
)

// ReservationRepository is the store contract for pending reservations.
// Rows are only ever status-transitioned, never deleted; every transition is
// guarded by the current status so a lost race surfaces as zero matches.
type ReservationRepository interface {
	Create(ctx context.Context, r *models.PendingReservation) error
	// GetByToken returns the reservation regardless of status, or nil when
	// the token is unknown.
	GetByToken(ctx context.Context, token string) (*models.PendingReservation, error)
	// LatestAwaitingForConversation returns the newest live hold for the
	// conversation, or nil.
	LatestAwaitingForConversation(ctx context.Context, conversationID string, now time.Time) (*models.PendingReservation, error)
	// HasLiveHoldAt reports an unexpired awaiting_confirm hold at exactly
	// the given instant, ignoring holds owned by excludeConversation.
	HasLiveHoldAt(ctx context.Context, consultantID string, at time.Time, now time.Time, excludeConversation string) (bool, error)
	// ListLiveOverlapping returns unexpired live holds intersecting [from, to).
	ListLiveOverlapping(ctx context.Context, consultantID string, from, to, now time.Time) ([]models.PendingReservation, error)
	// SupersedeForConversation moves every live hold of the conversation to
	// superseded and returns how many were moved.
	SupersedeForConversation(ctx context.Context, conversationID string) (int64, error)
	// ConfirmTransition is the CAS linearization point: it flips the row to
	// confirmed only while it is still awaiting_confirm and unexpired.
	// Returns false when a concurrent actor already resolved the row.
	ConfirmTransition(ctx context.Context, id string, now time.Time) (bool, error)
	// MarkStatus unconditionally sets a terminal status (expiry on read,
	// compensating cancel after a lost uniqueness race).
	MarkStatus(ctx context.Context, id, status string) error
	SetConsultationRef(ctx context.Context, id, consultationID string) error
	// ExpireOverdue sweeps overdue live holds to expired.
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
	EnsureIndexes() error
}
