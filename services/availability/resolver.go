package availability

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"appointa/models"
	"appointa/utils"
)

// Defaults applied whenever a settings field is absent or malformed.
const (
	defaultTimezone       = "Europe/Rome"
	defaultDuration       = 60
	defaultBufferBefore   = 15
	defaultBufferAfter    = 15
	defaultMinNoticeHours = 24
	defaultMaxDaysAhead   = 30
	defaultMorningStart   = "09:00"
	defaultMorningEnd     = "13:00"
	defaultAfternoonStart = "14:00"
	defaultAfternoonEnd   = "18:00"
)

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ResolveConfig loads the consultant's settings document and normalizes it
// into the canonical per-day range list. Consultants with no document (or an
// inactive one) get the default Monday-to-Friday policy. A malformed day
// entry is skipped with a warning rather than failing the whole resolution.
func (s *DefaultService) ResolveConfig(ctx context.Context, consultantID string) (*models.AvailabilityConfig, error) {
	raw, err := s.SettingsRepo.GetByConsultant(ctx, consultantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load availability settings: %w", err)
	}

	cfg := &models.AvailabilityConfig{
		ConsultantID:    consultantID,
		Timezone:        defaultTimezone,
		DurationMinutes: defaultDuration,
		BufferBefore:    defaultBufferBefore,
		BufferAfter:     defaultBufferAfter,
		MinNoticeHours:  defaultMinNoticeHours,
		MaxDaysAhead:    defaultMaxDaysAhead,
	}

	if raw == nil || !raw.IsActive {
		applyDefaultWeek(cfg, defaultMorningStart, defaultMorningEnd, defaultAfternoonStart, defaultAfternoonEnd)
		return finishConfig(cfg)
	}

	if raw.Timezone != "" {
		cfg.Timezone = raw.Timezone
	}
	if raw.AppointmentDuration > 0 {
		cfg.DurationMinutes = raw.AppointmentDuration
	}
	if raw.BufferBefore > 0 {
		cfg.BufferBefore = raw.BufferBefore
	}
	if raw.BufferAfter > 0 {
		cfg.BufferAfter = raw.BufferAfter
	}
	if raw.MinHoursNotice > 0 {
		cfg.MinNoticeHours = raw.MinHoursNotice
	}
	if raw.MaxDaysAhead > 0 {
		cfg.MaxDaysAhead = raw.MaxDaysAhead
	}

	if len(raw.WorkingDays) > 0 {
		resolveNamedDays(cfg, raw.WorkingDays)
	} else {
		// Oldest encoding: flat morning/afternoon columns applied Mon-Fri.
		morningStart := orDefault(raw.MorningSlotStart, defaultMorningStart)
		morningEnd := orDefault(raw.MorningSlotEnd, defaultMorningEnd)
		afternoonStart := orDefault(raw.AfternoonSlotStart, defaultAfternoonStart)
		afternoonEnd := orDefault(raw.AfternoonSlotEnd, defaultAfternoonEnd)
		applyDefaultWeek(cfg, morningStart, morningEnd, afternoonStart, afternoonEnd)
	}

	return finishConfig(cfg)
}

// resolveNamedDays handles the named-weekday map encoding. Each entry may
// carry a ranges list, a single start/end pair, or only an enabled flag.
func resolveNamedDays(cfg *models.AvailabilityConfig, days map[string]models.DaySetting) {
	logger := utils.GetLogger().Sugar()
	for name, setting := range days {
		wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			logger.Warnf("Skipping unknown weekday %q in availability settings for %s", name, cfg.ConsultantID)
			continue
		}
		if !setting.Enabled {
			continue
		}

		ranges := setting.Ranges
		if len(ranges) == 0 && setting.Start != "" && setting.End != "" {
			ranges = []models.TimeRange{{Start: setting.Start, End: setting.End}}
		}
		if len(ranges) == 0 {
			// Enable-flag-only encoding falls back to the default split.
			ranges = []models.TimeRange{
				{Start: defaultMorningStart, End: defaultMorningEnd},
				{Start: defaultAfternoonStart, End: defaultAfternoonEnd},
			}
		}

		var valid []models.TimeRange
		for _, r := range ranges {
			startMin, err1 := ParseClock(r.Start)
			endMin, err2 := ParseClock(r.End)
			if err1 != nil || err2 != nil || startMin >= endMin {
				logger.Warnf("Skipping malformed range %s-%s on %s for %s", r.Start, r.End, name, cfg.ConsultantID)
				continue
			}
			valid = append(valid, r)
		}
		if len(valid) == 0 {
			continue
		}
		cfg.Week[wd] = models.DaySchedule{Enabled: true, Ranges: sortAndMergeRanges(valid)}
	}
}

// sortAndMergeRanges orders a day's ranges by start time and coalesces any
// that overlap or touch, so candidate generation walks each day
// chronologically and never emits a slot twice. Ranges must already be
// validated by ParseClock.
func sortAndMergeRanges(ranges []models.TimeRange) []models.TimeRange {
	type span struct {
		start, end int
		tr         models.TimeRange
	}
	spans := make([]span, 0, len(ranges))
	for _, r := range ranges {
		startMin, _ := ParseClock(r.Start)
		endMin, _ := ParseClock(r.End)
		spans = append(spans, span{start: startMin, end: endMin, tr: r})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	out := make([]models.TimeRange, 0, len(spans))
	lastEnd := -1
	for _, sp := range spans {
		if len(out) > 0 && sp.start <= lastEnd {
			if sp.end > lastEnd {
				out[len(out)-1].End = sp.tr.End
				lastEnd = sp.end
			}
			continue
		}
		out = append(out, sp.tr)
		lastEnd = sp.end
	}
	return out
}

// applyDefaultWeek enables Monday through Friday with a two-range split.
// A malformed column is skipped with a warning, same as a malformed named
// range.
func applyDefaultWeek(cfg *models.AvailabilityConfig, morningStart, morningEnd, afternoonStart, afternoonEnd string) {
	var valid []models.TimeRange
	for _, r := range []models.TimeRange{
		{Start: morningStart, End: morningEnd},
		{Start: afternoonStart, End: afternoonEnd},
	} {
		startMin, err1 := ParseClock(r.Start)
		endMin, err2 := ParseClock(r.End)
		if err1 != nil || err2 != nil || startMin >= endMin {
			utils.GetLogger().Sugar().Warnf("Skipping malformed slot column %s-%s for %s", r.Start, r.End, cfg.ConsultantID)
			continue
		}
		valid = append(valid, r)
	}
	if len(valid) == 0 {
		return
	}
	ranges := sortAndMergeRanges(valid)
	for wd := time.Monday; wd <= time.Friday; wd++ {
		cfg.Week[wd] = models.DaySchedule{Enabled: true, Ranges: ranges}
	}
}

// finishConfig loads the timezone location, falling back to the default when
// the stored name does not resolve.
func finishConfig(cfg *models.AvailabilityConfig) (*models.AvailabilityConfig, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		utils.GetLogger().Sugar().Warnf("Unknown timezone %q for %s, falling back to %s", cfg.Timezone, cfg.ConsultantID, defaultTimezone)
		cfg.Timezone = defaultTimezone
		loc, err = time.LoadLocation(defaultTimezone)
		if err != nil {
			return nil, fmt.Errorf("failed to load fallback timezone: %w", err)
		}
	}
	cfg.Location = loc
	return cfg, nil
}

// ParseClock parses "HH:MM" into minutes after midnight.
func ParseClock(v string) (int, error) {
	parts := strings.Split(strings.TrimSpace(v), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", v)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", v)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", v)
	}
	return h*60 + m, nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
