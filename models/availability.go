package models

import "time"

// TimeRange is a local wall-clock window within a single day.
type TimeRange struct {
	Start string `bson:"start" json:"start"` // "HH:MM"
	End   string `bson:"end" json:"end"`     // "HH:MM", strictly after Start
}

// DaySchedule is the canonical bookable shape of one weekday.
type DaySchedule struct {
	Enabled bool        `bson:"enabled" json:"enabled"`
	Ranges  []TimeRange `bson:"ranges" json:"ranges"`
}

// AvailabilityConfig is the normalized scheduling policy for one consultant.
// Produced by the resolver from whatever encoding the settings document
// carries; read-only to the rest of the engine.
type AvailabilityConfig struct {
	ConsultantID    string          `json:"consultantId"`
	Timezone        string          `json:"timezone"`
	Location        *time.Location  `json:"-"`
	DurationMinutes int             `json:"durationMinutes"`
	BufferBefore    int             `json:"bufferBefore"` // minutes
	BufferAfter     int             `json:"bufferAfter"`  // minutes
	MinNoticeHours  int             `json:"minNoticeHours"`
	MaxDaysAhead    int             `json:"maxDaysAhead"`
	Week            [7]DaySchedule  `json:"week"` // indexed by time.Weekday
}

// DaySetting is one weekday entry as stored. Legacy documents carry either a
// single start/end pair, a bare enabled flag, or the newer ranges list.
type DaySetting struct {
	Enabled bool        `bson:"enabled" json:"enabled"`
	Start   string      `bson:"start,omitempty" json:"start,omitempty"`
	End     string      `bson:"end,omitempty" json:"end,omitempty"`
	Ranges  []TimeRange `bson:"ranges,omitempty" json:"ranges,omitempty"`
}

// AvailabilitySettings is the raw per-consultant settings document.
// The flat slot columns are the oldest encoding; WorkingDays supersedes them
// when present. The resolver owns reconciling the two.
type AvailabilitySettings struct {
	ID                  string                `bson:"id" json:"id"`
	ConsultantID        string                `bson:"consultant_id" json:"consultantId"`
	AppointmentDuration int                   `bson:"appointment_duration" json:"appointmentDuration"`
	BufferBefore        int                   `bson:"buffer_before" json:"bufferBefore"`
	BufferAfter         int                   `bson:"buffer_after" json:"bufferAfter"`
	MorningSlotStart    string                `bson:"morning_slot_start" json:"morningSlotStart"`
	MorningSlotEnd      string                `bson:"morning_slot_end" json:"morningSlotEnd"`
	AfternoonSlotStart  string                `bson:"afternoon_slot_start" json:"afternoonSlotStart"`
	AfternoonSlotEnd    string                `bson:"afternoon_slot_end" json:"afternoonSlotEnd"`
	MaxDaysAhead        int                   `bson:"max_days_ahead" json:"maxDaysAhead"`
	MinHoursNotice      int                   `bson:"min_hours_notice" json:"minHoursNotice"`
	Timezone            string                `bson:"timezone" json:"timezone"`
	WorkingDays         map[string]DaySetting `bson:"working_days,omitempty" json:"workingDays,omitempty"`
	IsActive            bool                  `bson:"is_active" json:"isActive"`
	UpdatedAt           time.Time             `bson:"updated_at" json:"updatedAt"`
}

// Busy interval sources.
const (
	BusySourceBooking  = "booking"
	BusySourcePending  = "pending"
	BusySourceExternal = "external"
)

// BusyInterval is one occupied window, already expanded by buffers where the
// source requires it. Never persisted; rebuilt per availability request.
type BusyInterval struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Source string    `json:"source"`
}

// Overlaps reports half-open overlap with [start, end). Touching boundaries
// do not conflict.
func (b BusyInterval) Overlaps(start, end time.Time) bool {
	return start.Before(b.End) && end.After(b.Start)
}

// Slot is a candidate bookable interval not yet held or confirmed.
type Slot struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	LocalDate string    `json:"localDate"` // "2006-01-02" in the owner's timezone
	LocalTime string    `json:"localTime"` // "15:04"
	DayOfWeek string    `json:"dayOfWeek"` // lowercase English weekday
}

// SlotFilters narrows candidate generation before the busy test.
type SlotFilters struct {
	DayOfWeek string `json:"dayOfWeek,omitempty"` // "monday".."sunday"
	TimeBand  string `json:"timeBand,omitempty"`  // "morning" | "afternoon" | "evening"
}
