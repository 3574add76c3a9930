package reservation

import (
	"strings"
	"time"
)

// ParseStart validates conversational date and time strings ("2006-01-02"
// and "15:04") and combines them into an instant in the given location.
// Every rejection is a soft-fail; nothing here touches the store.
func ParseStart(dateStr, timeStr string, loc *time.Location, now time.Time) (time.Time, error) {
	dateStr = strings.TrimSpace(dateStr)
	timeStr = strings.TrimSpace(timeStr)

	if dateStr == "" {
		return time.Time{}, NewSoftFail(CodeMissingDate, "No date was provided.", "Ask which day works, for example 2025-11-06.")
	}
	if timeStr == "" {
		return time.Time{}, NewSoftFail(CodeMissingTime, "No time was provided.", "Ask which time works, for example 15:00.")
	}

	day, err := time.ParseInLocation("2006-01-02", dateStr, loc)
	if err != nil {
		return time.Time{}, NewSoftFail(CodeInvalidDateFormat, "The date must look like 2025-11-06.", "Re-ask for the date in year-month-day form.")
	}
	clock, err := time.Parse("15:04", timeStr)
	if err != nil {
		return time.Time{}, NewSoftFail(CodeInvalidTimeFormat, "The time must look like 15:00.", "Re-ask for the time in 24-hour form.")
	}

	start := time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, loc)
	if !start.After(now) {
		return time.Time{}, NewSoftFail(CodePastDate, "That moment has already passed.", "Suggest the next available days instead.")
	}
	return start, nil
}
