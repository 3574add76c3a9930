package models

import "time"

// Consultation statuses. Cancelled rows stay in the collection; the unique
// (consultant_id, scheduled_at) index only covers non-cancelled rows.
const (
	ConsultationScheduled = "scheduled"
	ConsultationCompleted = "completed"
	ConsultationCancelled = "cancelled"
)

// Lifecycle action types recorded on LastCompletedAction.
const (
	ActionModify       = "MODIFY"
	ActionCancel       = "CANCEL"
	ActionAddAttendees = "ADD_ATTENDEES"
)

// CompletedAction is the audit record of the most recent lifecycle mutation.
// It carries enough detail for a caller to detect an exact re-application of
// the same intent and skip it.
type CompletedAction struct {
	Type           string    `bson:"type" json:"type"`
	CompletedAt    time.Time `bson:"completed_at" json:"completedAt"`
	OldStart       string    `bson:"old_start,omitempty" json:"oldStart,omitempty"` // RFC3339
	NewStart       string    `bson:"new_start,omitempty" json:"newStart,omitempty"`
	AttendeesAdded []string  `bson:"attendees_added,omitempty" json:"attendeesAdded,omitempty"`
}

// Consultation is the durable booking record.
type Consultation struct {
	ID              string     `bson:"id" json:"id"`
	ConsultantID    string     `bson:"consultant_id" json:"consultantId"`
	ClientID        string     `bson:"client_id,omitempty" json:"clientId,omitempty"`
	ClientName      string     `bson:"client_name,omitempty" json:"clientName,omitempty"`
	ClientPhone     string     `bson:"client_phone,omitempty" json:"clientPhone,omitempty"`
	ClientEmail     string     `bson:"client_email,omitempty" json:"clientEmail,omitempty"`
	ScheduledAt     time.Time  `bson:"scheduled_at" json:"scheduledAt"`
	DurationMinutes int        `bson:"duration_minutes" json:"durationMinutes"`
	Status          string     `bson:"status" json:"status"`
	Notes           string     `bson:"notes,omitempty" json:"notes,omitempty"`
	Source          string     `bson:"source" json:"source"` // "agent" | "self_serve"
	ConversationID  string     `bson:"conversation_id,omitempty" json:"conversationId,omitempty"`
	GoogleEventID   string     `bson:"google_event_id,omitempty" json:"googleEventId,omitempty"`
	MeetLink        string     `bson:"meet_link,omitempty" json:"meetLink,omitempty"`
	Attendees       []string   `bson:"attendees,omitempty" json:"attendees,omitempty"`
	ConfirmedAt     *time.Time `bson:"confirmed_at,omitempty" json:"confirmedAt,omitempty"`
	CancelledAt     *time.Time `bson:"cancelled_at,omitempty" json:"cancelledAt,omitempty"`
	CompletedAt     *time.Time `bson:"completed_at,omitempty" json:"completedAt,omitempty"`
	LastCompletedAction *CompletedAction `bson:"last_completed_action,omitempty" json:"lastCompletedAction,omitempty"`
	CreatedAt       time.Time  `bson:"created_at" json:"createdAt"`
	UpdatedAt       time.Time  `bson:"updated_at" json:"updatedAt"`
}

// EndAt is the unbuffered end of the appointment.
func (c *Consultation) EndAt() time.Time {
	return c.ScheduledAt.Add(time.Duration(c.DurationMinutes) * time.Minute)
}

// Client is the lead/customer view the engine needs: identity for ownership
// checks and the optional monthly session cap (0 = unlimited).
type Client struct {
	ID                       string `bson:"id" json:"id"`
	Name                     string `bson:"name,omitempty" json:"name,omitempty"`
	Email                    string `bson:"email,omitempty" json:"email,omitempty"`
	Phone                    string `bson:"phone,omitempty" json:"phone,omitempty"`
	MonthlyConsultationLimit int    `bson:"monthly_consultation_limit,omitempty" json:"monthlyConsultationLimit,omitempty"`
}
