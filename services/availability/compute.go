package availability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"appointa/models"
)

// DefaultMaxResults caps slot generation when the caller passes no limit.
const DefaultMaxResults = 20

// GetAvailableSlots resolves the consultant's policy, aggregates busy time
// and walks the recurring schedule over [from, to]. Results are
// chronological and capped at maxResults.
func (s *DefaultService) GetAvailableSlots(ctx context.Context, consultantID string, from, to time.Time, filters models.SlotFilters, maxResults int) ([]models.Slot, error) {
	cfg, err := s.ResolveConfig(ctx, consultantID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	minStart := now.Add(time.Duration(cfg.MinNoticeHours) * time.Hour)
	horizon := now.AddDate(0, 0, cfg.MaxDaysAhead)

	rangeStart := from
	if minStart.After(rangeStart) {
		rangeStart = minStart
	}
	rangeEnd := to
	if horizon.Before(rangeEnd) {
		rangeEnd = horizon
	}
	if !rangeStart.Before(rangeEnd) {
		return nil, nil
	}

	busy, err := s.collectBusy(ctx, cfg, rangeStart, rangeEnd)
	if err != nil {
		return nil, err
	}

	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return computeSlots(cfg, busy, rangeStart, rangeEnd, minStart, maxResults, filters), nil
}

// computeSlots generates quantized candidates day by day in the owner's
// timezone and keeps those whose buffered window clears the busy bag.
func computeSlots(cfg *models.AvailabilityConfig, busy []models.BusyInterval, rangeStart, rangeEnd, minStart time.Time, maxResults int, filters models.SlotFilters) []models.Slot {
	step := 60
	if cfg.DurationMinutes <= 30 {
		step = 30
	}
	duration := time.Duration(cfg.DurationMinutes) * time.Minute
	before := time.Duration(cfg.BufferBefore) * time.Minute
	after := time.Duration(cfg.BufferAfter) * time.Minute

	wantDay, dayFilterActive := weekdayNames[strings.ToLower(filters.DayOfWeek)]

	var slots []models.Slot
	localStart := rangeStart.In(cfg.Location)
	day := time.Date(localStart.Year(), localStart.Month(), localStart.Day(), 0, 0, 0, 0, cfg.Location)

	for !day.After(rangeEnd.In(cfg.Location)) && len(slots) < maxResults {
		sched := cfg.Week[day.Weekday()]
		if !sched.Enabled || (dayFilterActive && day.Weekday() != wantDay) {
			day = day.AddDate(0, 0, 1)
			continue
		}

		for _, r := range sched.Ranges {
			startMin, err1 := ParseClock(r.Start)
			endMin, err2 := ParseClock(r.End)
			if err1 != nil || err2 != nil {
				continue
			}
			for offset := startMin; offset+cfg.DurationMinutes <= endMin; offset += step {
				if len(slots) >= maxResults {
					return slots
				}
				if filters.TimeBand != "" && bandOf(offset) != strings.ToLower(filters.TimeBand) {
					continue
				}

				candidateStart := day.Add(time.Duration(offset) * time.Minute)
				candidateEnd := candidateStart.Add(duration)
				if !candidateStart.After(minStart) || candidateStart.Before(rangeStart) || candidateStart.After(rangeEnd) {
					continue
				}
				if overlapsAny(busy, candidateStart.Add(-before), candidateEnd.Add(after)) {
					continue
				}

				slots = append(slots, models.Slot{
					Start:     candidateStart,
					End:       candidateEnd,
					LocalDate: candidateStart.Format("2006-01-02"),
					LocalTime: candidateStart.Format("15:04"),
					DayOfWeek: strings.ToLower(candidateStart.Weekday().String()),
				})
			}
		}
		day = day.AddDate(0, 0, 1)
	}
	return slots
}

// IsSlotAvailable re-checks a single candidate start against the schedule,
// minimum notice and current busy time.
func (s *DefaultService) IsSlotAvailable(ctx context.Context, consultantID string, start time.Time) (bool, error) {
	cfg, err := s.ResolveConfig(ctx, consultantID)
	if err != nil {
		return false, err
	}

	now := s.now()
	if !start.After(now.Add(time.Duration(cfg.MinNoticeHours) * time.Hour)) {
		return false, nil
	}
	if start.After(now.AddDate(0, 0, cfg.MaxDaysAhead)) {
		return false, nil
	}
	if !withinSchedule(cfg, start) {
		return false, nil
	}

	duration := time.Duration(cfg.DurationMinutes) * time.Minute
	before := time.Duration(cfg.BufferBefore) * time.Minute
	after := time.Duration(cfg.BufferAfter) * time.Minute
	busy, err := s.collectBusy(ctx, cfg, start.Add(-before), start.Add(duration).Add(after))
	if err != nil {
		return false, err
	}
	return !overlapsAny(busy, start.Add(-before), start.Add(duration).Add(after)), nil
}

// withinSchedule reports whether the appointment fits entirely inside one of
// the day's configured ranges.
func withinSchedule(cfg *models.AvailabilityConfig, start time.Time) bool {
	local := start.In(cfg.Location)
	sched := cfg.Week[local.Weekday()]
	if !sched.Enabled {
		return false
	}
	offset := local.Hour()*60 + local.Minute()
	for _, r := range sched.Ranges {
		startMin, err1 := ParseClock(r.Start)
		endMin, err2 := ParseClock(r.End)
		if err1 != nil || err2 != nil {
			continue
		}
		if offset >= startMin && offset+cfg.DurationMinutes <= endMin {
			return true
		}
	}
	return false
}

func overlapsAny(busy []models.BusyInterval, start, end time.Time) bool {
	for _, b := range busy {
		if b.Overlaps(start, end) {
			return true
		}
	}
	return false
}

// bandOf maps a minutes-after-midnight offset to a coarse time-of-day band.
func bandOf(offset int) string {
	switch {
	case offset < 13*60:
		return "morning"
	case offset < 18*60:
		return "afternoon"
	default:
		return "evening"
	}
}

// FormatSlotLabel renders a slot for user-facing proposals.
func FormatSlotLabel(slot models.Slot) string {
	day := slot.DayOfWeek
	if day != "" {
		day = strings.ToUpper(day[:1]) + day[1:]
	}
	return fmt.Sprintf("%s %s at %s", day, slot.LocalDate, slot.LocalTime)
}
