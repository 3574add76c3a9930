package models

import "time"

// PendingReservation statuses. awaiting_confirm is the only live state; the
// rest are terminal. Rows are never deleted, only transitioned.
const (
	ReservationAwaitingConfirm = "awaiting_confirm"
	ReservationConfirmed       = "confirmed"
	ReservationExpired         = "expired"
	ReservationCancelled       = "cancelled"
	ReservationSuperseded      = "superseded"
)

// PendingReservation is a time-boxed, token-identified claim on a slot.
type PendingReservation struct {
	ID              string     `bson:"id" json:"id"`
	Token           string     `bson:"token" json:"-"`
	ClientID        string     `bson:"client_id,omitempty" json:"clientId,omitempty"`
	ClientName      string     `bson:"client_name,omitempty" json:"clientName,omitempty"`
	ClientPhone     string     `bson:"client_phone,omitempty" json:"clientPhone,omitempty"`
	ClientEmail     string     `bson:"client_email,omitempty" json:"clientEmail,omitempty"`
	ConsultantID    string     `bson:"consultant_id" json:"consultantId"`
	StartAt         time.Time  `bson:"start_at" json:"startAt"`
	DurationMinutes int        `bson:"duration_minutes" json:"durationMinutes"`
	Status          string     `bson:"status" json:"status"`
	Notes           string     `bson:"notes,omitempty" json:"notes,omitempty"`
	ConversationID  string     `bson:"conversation_id,omitempty" json:"conversationId,omitempty"`
	ExpiresAt       time.Time  `bson:"expires_at" json:"expiresAt"`
	CreatedAt       time.Time  `bson:"created_at" json:"createdAt"`
	ConfirmedAt     *time.Time `bson:"confirmed_at,omitempty" json:"confirmedAt,omitempty"`
	// ConsultationID back-links the durable booking once finalized; set
	// exactly once and relied on for idempotent confirm replay.
	ConsultationID string `bson:"consultation_id,omitempty" json:"consultationId,omitempty"`
}

// EndAt is the unbuffered end of the claimed window.
func (r *PendingReservation) EndAt() time.Time {
	return r.StartAt.Add(time.Duration(r.DurationMinutes) * time.Minute)
}
