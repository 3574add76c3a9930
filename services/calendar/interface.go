package calendar

import (
	"context"
	"time"
)

// BusyEvent is one occupied window on the owner's external calendar.
type BusyEvent struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// EventInput carries everything needed to create an appointment event.
type EventInput struct {
	Summary         string   `json:"summary"`
	Description     string   `json:"description"`
	Start           time.Time `json:"start"`
	DurationMinutes int      `json:"durationMinutes"`
	Timezone        string   `json:"timezone"`
	Attendees       []string `json:"attendees"`
}

// EventRef identifies a created event and its generated meeting link.
type EventRef struct {
	EventID  string `json:"eventId"`
	MeetLink string `json:"meetLink,omitempty"`
}

// Service is the external calendar contract. Every method is best-effort
// from the engine's point of view: callers log failures and carry on.
type Service interface {
	// ListBusyEvents returns occupied windows in [from, to), excluding
	// events marked free/transparent or cancelled.
	ListBusyEvents(ctx context.Context, ownerID string, from, to time.Time) ([]BusyEvent, error)
	CreateEvent(ctx context.Context, ownerID string, in EventInput) (*EventRef, error)
	UpdateEvent(ctx context.Context, ownerID, eventID string, newStart time.Time, durationMinutes int) error
	DeleteEvent(ctx context.Context, ownerID, eventID string) error
	// AddAttendees merges the emails into the event's attendee list and
	// returns which were added and which were already present.
	AddAttendees(ctx context.Context, ownerID, eventID string, emails []string) (added, skipped []string, err error)
}
