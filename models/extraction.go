package models

import "time"

// Extraction field names, also the values accepted in ExtractionResult.Clear.
const (
	FieldDate  = "date"
	FieldTime  = "time"
	FieldPhone = "phone"
	FieldEmail = "email"
	FieldName  = "name"
)

// ConversationMessage is one turn of the transcript handed to the extractor.
type ConversationMessage struct {
	Sender string `json:"sender"` // "client" | "ai" | "consultant"
	Text   string `json:"text"`
}

// ExtractionResult is the partial field set one model call produced.
// A nil field means "not mentioned this turn", never "clear". An explicit
// retraction must arrive through Clear, which names the fields to wipe.
type ExtractionResult struct {
	IsConfirming bool     `json:"isConfirming"`
	Date         *string  `json:"date"`  // "2006-01-02"
	Time         *string  `json:"time"`  // "15:04"
	Phone        *string  `json:"phone"`
	Email        *string  `json:"email"`
	Name         *string  `json:"name"`
	Confidence   string   `json:"confidence"` // "high" | "medium" | "low"
	HasAllData   bool     `json:"hasAllData"`
	Clear        []string `json:"-"`
}

// BookingDraft is the cross-turn accumulated state for one conversation.
// Stored under the conversation key with a rolling TTL; once CompletedAt is
// set the draft is inert and excluded from future merges.
type BookingDraft struct {
	ConversationKey string     `json:"conversationKey"`
	ConsultantID    string     `json:"consultantId"`
	Date            *string    `json:"date"`
	Time            *string    `json:"time"`
	Phone           *string    `json:"phone"`
	Email           *string    `json:"email"`
	Name            *string    `json:"name"`
	Confidence      string     `json:"confidence"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
}

// HasAllData reports whether the draft can back a booking: date, time, phone
// and email are all present.
func (d *BookingDraft) HasAllData() bool {
	return d.Date != nil && d.Time != nil && d.Phone != nil && d.Email != nil
}
