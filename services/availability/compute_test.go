package availability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appointa/models"
	"appointa/services/calendar"
)

type fakeSettingsRepo struct {
	doc *models.AvailabilitySettings
}

func (f *fakeSettingsRepo) GetByConsultant(ctx context.Context, consultantID string) (*models.AvailabilitySettings, error) {
	return f.doc, nil
}
func (f *fakeSettingsRepo) Upsert(ctx context.Context, s *models.AvailabilitySettings) error {
	f.doc = s
	return nil
}
func (f *fakeSettingsRepo) EnsureIndexes() error { return nil }

type fakeConsultationRepo struct {
	rows []models.Consultation
}

func (f *fakeConsultationRepo) Create(ctx context.Context, c *models.Consultation) error {
	f.rows = append(f.rows, *c)
	return nil
}
func (f *fakeConsultationRepo) GetByID(ctx context.Context, id string) (*models.Consultation, error) {
	return nil, nil
}
func (f *fakeConsultationRepo) ExistsAt(ctx context.Context, consultantID string, at time.Time) (bool, error) {
	return false, nil
}
func (f *fakeConsultationRepo) ListOverlapping(ctx context.Context, consultantID string, from, to time.Time) ([]models.Consultation, error) {
	var out []models.Consultation
	for _, c := range f.rows {
		if c.ScheduledAt.Before(to) && c.EndAt().After(from) {
			out = append(out, c)
		}
	}
	return out, nil
}
func (f *fakeConsultationRepo) ListForClientInRange(ctx context.Context, clientID string, from, to time.Time) ([]models.Consultation, error) {
	return nil, nil
}
func (f *fakeConsultationRepo) HasConflict(ctx context.Context, consultantID string, from, to time.Time, excludeID string) (bool, error) {
	return false, nil
}
func (f *fakeConsultationRepo) UpdateSchedule(ctx context.Context, id string, newStart time.Time, newDuration int, action *models.CompletedAction) error {
	return nil
}
func (f *fakeConsultationRepo) Cancel(ctx context.Context, id string, action *models.CompletedAction) error {
	return nil
}
func (f *fakeConsultationRepo) AddAttendees(ctx context.Context, id string, emails []string, action *models.CompletedAction) error {
	return nil
}
func (f *fakeConsultationRepo) SetCalendarRef(ctx context.Context, id, googleEventID, meetLink string) error {
	return nil
}
func (f *fakeConsultationRepo) EnsureIndexes() error { return nil }

type fakeReservationRepo struct {
	rows []models.PendingReservation
}

func (f *fakeReservationRepo) Create(ctx context.Context, r *models.PendingReservation) error {
	f.rows = append(f.rows, *r)
	return nil
}
func (f *fakeReservationRepo) GetByToken(ctx context.Context, token string) (*models.PendingReservation, error) {
	return nil, nil
}
func (f *fakeReservationRepo) LatestAwaitingForConversation(ctx context.Context, conversationID string, now time.Time) (*models.PendingReservation, error) {
	return nil, nil
}
func (f *fakeReservationRepo) HasLiveHoldAt(ctx context.Context, consultantID string, at, now time.Time, excludeConversation string) (bool, error) {
	return false, nil
}
func (f *fakeReservationRepo) ListLiveOverlapping(ctx context.Context, consultantID string, from, to, now time.Time) ([]models.PendingReservation, error) {
	var out []models.PendingReservation
	for _, r := range f.rows {
		if r.Status != models.ReservationAwaitingConfirm || !r.ExpiresAt.After(now) {
			continue
		}
		if r.StartAt.Before(to) && r.EndAt().After(from) {
			out = append(out, r)
		}
	}
	return out, nil
}
func (f *fakeReservationRepo) SupersedeForConversation(ctx context.Context, conversationID string) (int64, error) {
	return 0, nil
}
func (f *fakeReservationRepo) ConfirmTransition(ctx context.Context, id string, now time.Time) (bool, error) {
	return false, nil
}
func (f *fakeReservationRepo) MarkStatus(ctx context.Context, id, status string) error { return nil }
func (f *fakeReservationRepo) SetConsultationRef(ctx context.Context, id, consultationID string) error {
	return nil
}
func (f *fakeReservationRepo) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}
func (f *fakeReservationRepo) EnsureIndexes() error { return nil }

type fakeCalendar struct {
	events []calendar.BusyEvent
	err    error
}

func (f *fakeCalendar) ListBusyEvents(ctx context.Context, ownerID string, from, to time.Time) ([]calendar.BusyEvent, error) {
	return f.events, f.err
}
func (f *fakeCalendar) CreateEvent(ctx context.Context, ownerID string, in calendar.EventInput) (*calendar.EventRef, error) {
	return &calendar.EventRef{EventID: "evt-1"}, nil
}
func (f *fakeCalendar) UpdateEvent(ctx context.Context, ownerID, eventID string, newStart time.Time, durationMinutes int) error {
	return nil
}
func (f *fakeCalendar) DeleteEvent(ctx context.Context, ownerID, eventID string) error { return nil }
func (f *fakeCalendar) AddAttendees(ctx context.Context, ownerID, eventID string, emails []string) ([]string, []string, error) {
	return emails, nil, nil
}

// weekSettings is Mon-Fri 09:00-13:00 and 15:00-18:00 in UTC.
func weekSettings() *models.AvailabilitySettings {
	day := models.DaySetting{Enabled: true, Ranges: []models.TimeRange{
		{Start: "09:00", End: "13:00"},
		{Start: "15:00", End: "18:00"},
	}}
	return &models.AvailabilitySettings{
		ConsultantID:        "cons-1",
		AppointmentDuration: 60,
		BufferBefore:        15,
		BufferAfter:         15,
		MinHoursNotice:      24,
		MaxDaysAhead:        30,
		Timezone:            "UTC",
		IsActive:            true,
		WorkingDays: map[string]models.DaySetting{
			"monday": day, "tuesday": day, "wednesday": day, "thursday": day, "friday": day,
		},
	}
}

func newTestService(settings *models.AvailabilitySettings, consultations *fakeConsultationRepo, reservations *fakeReservationRepo, cal calendar.Service, now time.Time) *DefaultService {
	svc := NewDefaultService(&fakeSettingsRepo{doc: settings}, consultations, reservations, cal)
	svc.now = func() time.Time { return now }
	return svc
}

func TestGetAvailableSlotsFullWeekScenario(t *testing.T) {
	now := time.Date(2025, 11, 3, 8, 0, 0, 0, time.UTC) // Monday
	svc := newTestService(weekSettings(), &fakeConsultationRepo{}, &fakeReservationRepo{}, nil, now)

	slots, err := svc.GetAvailableSlots(context.Background(), "cons-1", now, now.AddDate(0, 0, 4), models.SlotFilters{}, 50)
	require.NoError(t, err)

	// Monday falls inside the 24h notice window, so the first offerable day
	// is Tuesday. Each open day yields 09,10,11,12 and 15,16,17.
	wantTimes := []string{"09:00", "10:00", "11:00", "12:00", "15:00", "16:00", "17:00"}
	require.Len(t, slots, 3*len(wantTimes))
	for i, slot := range slots[:len(wantTimes)] {
		assert.Equal(t, "2025-11-04", slot.LocalDate)
		assert.Equal(t, wantTimes[i], slot.LocalTime)
		assert.Equal(t, "tuesday", slot.DayOfWeek)
	}
	for _, slot := range slots {
		assert.True(t, slot.Start.After(now.Add(24*time.Hour)), "slot %v violates minimum notice", slot.Start)
	}
}

func TestGetAvailableSlotsRespectsBuffers(t *testing.T) {
	now := time.Date(2025, 11, 3, 8, 0, 0, 0, time.UTC)
	booked := &fakeConsultationRepo{rows: []models.Consultation{{
		ID:              "c1",
		ConsultantID:    "cons-1",
		ScheduledAt:     time.Date(2025, 11, 4, 10, 0, 0, 0, time.UTC),
		DurationMinutes: 60,
		Status:          models.ConsultationScheduled,
	}}}
	svc := newTestService(weekSettings(), booked, &fakeReservationRepo{}, nil, now)

	slots, err := svc.GetAvailableSlots(context.Background(), "cons-1", now, now.AddDate(0, 0, 2), models.SlotFilters{}, 50)
	require.NoError(t, err)

	// The booking at 10:00 plus 15-minute buffers occupies 09:45-11:15.
	// The 09:00 candidate's buffered window ends 10:15 and the 11:00
	// candidate's starts 10:45, so both collide as well.
	var tuesdayTimes []string
	for _, slot := range slots {
		if slot.LocalDate == "2025-11-04" {
			tuesdayTimes = append(tuesdayTimes, slot.LocalTime)
		}
	}
	assert.Equal(t, []string{"12:00", "15:00", "16:00", "17:00"}, tuesdayTimes)
}

func TestGetAvailableSlotsPendingHoldBlocks(t *testing.T) {
	now := time.Date(2025, 11, 3, 8, 0, 0, 0, time.UTC)
	holds := &fakeReservationRepo{rows: []models.PendingReservation{{
		ID:              "r1",
		ConsultantID:    "cons-1",
		StartAt:         time.Date(2025, 11, 4, 15, 0, 0, 0, time.UTC),
		DurationMinutes: 60,
		Status:          models.ReservationAwaitingConfirm,
		ExpiresAt:       now.Add(10 * time.Minute),
	}}}
	svc := newTestService(weekSettings(), &fakeConsultationRepo{}, holds, nil, now)

	slots, err := svc.GetAvailableSlots(context.Background(), "cons-1", now, now.AddDate(0, 0, 2), models.SlotFilters{}, 50)
	require.NoError(t, err)
	for _, slot := range slots {
		assert.False(t, slot.LocalDate == "2025-11-04" && slot.LocalTime == "15:00", "held slot was offered")
	}
}

func TestGetAvailableSlotsExpiredHoldIgnored(t *testing.T) {
	now := time.Date(2025, 11, 3, 8, 0, 0, 0, time.UTC)
	holds := &fakeReservationRepo{rows: []models.PendingReservation{{
		ID:              "r1",
		ConsultantID:    "cons-1",
		StartAt:         time.Date(2025, 11, 4, 15, 0, 0, 0, time.UTC),
		DurationMinutes: 60,
		Status:          models.ReservationAwaitingConfirm,
		ExpiresAt:       now.Add(-1 * time.Minute),
	}}}
	svc := newTestService(weekSettings(), &fakeConsultationRepo{}, holds, nil, now)

	slots, err := svc.GetAvailableSlots(context.Background(), "cons-1", now, now.AddDate(0, 0, 2), models.SlotFilters{}, 50)
	require.NoError(t, err)

	found := false
	for _, slot := range slots {
		if slot.LocalDate == "2025-11-04" && slot.LocalTime == "15:00" {
			found = true
		}
	}
	assert.True(t, found, "slot held only by an expired reservation should be offered")
}

func TestGetAvailableSlotsCalendarFailureDegrades(t *testing.T) {
	now := time.Date(2025, 11, 3, 8, 0, 0, 0, time.UTC)
	cal := &fakeCalendar{err: assert.AnError}
	svc := newTestService(weekSettings(), &fakeConsultationRepo{}, &fakeReservationRepo{}, cal, now)

	slots, err := svc.GetAvailableSlots(context.Background(), "cons-1", now, now.AddDate(0, 0, 2), models.SlotFilters{}, 50)
	require.NoError(t, err)
	assert.NotEmpty(t, slots)
}

func TestGetAvailableSlotsCalendarEventBlocks(t *testing.T) {
	now := time.Date(2025, 11, 3, 8, 0, 0, 0, time.UTC)
	cal := &fakeCalendar{events: []calendar.BusyEvent{{
		Start: time.Date(2025, 11, 4, 9, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 11, 4, 13, 0, 0, 0, time.UTC),
	}}}
	svc := newTestService(weekSettings(), &fakeConsultationRepo{}, &fakeReservationRepo{}, cal, now)

	slots, err := svc.GetAvailableSlots(context.Background(), "cons-1", now, now.AddDate(0, 0, 2), models.SlotFilters{}, 50)
	require.NoError(t, err)
	for _, slot := range slots {
		if slot.LocalDate == "2025-11-04" {
			assert.GreaterOrEqual(t, slot.LocalTime, "15:00")
		}
	}
}

func TestGetAvailableSlotsMaxResultsCap(t *testing.T) {
	now := time.Date(2025, 11, 3, 8, 0, 0, 0, time.UTC)
	svc := newTestService(weekSettings(), &fakeConsultationRepo{}, &fakeReservationRepo{}, nil, now)

	slots, err := svc.GetAvailableSlots(context.Background(), "cons-1", now, now.AddDate(0, 0, 14), models.SlotFilters{}, 0)
	require.NoError(t, err)
	assert.Len(t, slots, DefaultMaxResults)
}

func TestGetAvailableSlotsFilters(t *testing.T) {
	now := time.Date(2025, 11, 3, 8, 0, 0, 0, time.UTC)
	svc := newTestService(weekSettings(), &fakeConsultationRepo{}, &fakeReservationRepo{}, nil, now)

	slots, err := svc.GetAvailableSlots(context.Background(), "cons-1", now, now.AddDate(0, 0, 7),
		models.SlotFilters{DayOfWeek: "wednesday", TimeBand: "afternoon"}, 50)
	require.NoError(t, err)
	require.NotEmpty(t, slots)
	for _, slot := range slots {
		assert.Equal(t, "wednesday", slot.DayOfWeek)
		assert.GreaterOrEqual(t, slot.LocalTime, "13:00")
	}
}

func TestGetAvailableSlotsNoEnabledDays(t *testing.T) {
	now := time.Date(2025, 11, 3, 8, 0, 0, 0, time.UTC)
	settings := weekSettings()
	settings.WorkingDays = map[string]models.DaySetting{
		"monday": {Enabled: false},
	}
	svc := newTestService(settings, &fakeConsultationRepo{}, &fakeReservationRepo{}, nil, now)

	slots, err := svc.GetAvailableSlots(context.Background(), "cons-1", now, now.AddDate(0, 0, 7), models.SlotFilters{}, 50)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestIsSlotAvailable(t *testing.T) {
	now := time.Date(2025, 11, 3, 8, 0, 0, 0, time.UTC)
	svc := newTestService(weekSettings(), &fakeConsultationRepo{}, &fakeReservationRepo{}, nil, now)

	ok, err := svc.IsSlotAvailable(context.Background(), "cons-1", time.Date(2025, 11, 4, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, ok)

	// Inside the notice window.
	ok, err = svc.IsSlotAvailable(context.Background(), "cons-1", time.Date(2025, 11, 3, 16, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, ok)

	// Saturday is disabled.
	ok, err = svc.IsSlotAvailable(context.Background(), "cons-1", time.Date(2025, 11, 8, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, ok)

	// 17:30 start would overflow the 18:00 range end.
	ok, err = svc.IsSlotAvailable(context.Background(), "cons-1", time.Date(2025, 11, 4, 17, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetAvailableSlotsOrdersRangesWithinDay(t *testing.T) {
	now := time.Date(2025, 11, 3, 8, 0, 0, 0, time.UTC) // Monday
	settings := weekSettings()
	settings.WorkingDays = map[string]models.DaySetting{
		"tuesday": {Enabled: true, Ranges: []models.TimeRange{
			{Start: "15:00", End: "18:00"},
			{Start: "09:00", End: "13:00"},
		}},
	}
	svc := newTestService(settings, &fakeConsultationRepo{}, &fakeReservationRepo{}, nil, now)

	slots, err := svc.GetAvailableSlots(context.Background(), "cons-1", now, now.AddDate(0, 0, 2), models.SlotFilters{}, 4)
	require.NoError(t, err)

	// The capped list must keep the morning slots even though the document
	// stores the afternoon range first.
	var times []string
	for _, slot := range slots {
		times = append(times, slot.LocalTime)
	}
	assert.Equal(t, []string{"09:00", "10:00", "11:00", "12:00"}, times)
	for i := 1; i < len(slots); i++ {
		assert.True(t, slots[i-1].Start.Before(slots[i].Start), "slots are not chronological")
	}
}

func TestGetAvailableSlotsMergesOverlappingRanges(t *testing.T) {
	now := time.Date(2025, 11, 3, 8, 0, 0, 0, time.UTC)
	settings := weekSettings()
	settings.WorkingDays = map[string]models.DaySetting{
		"tuesday": {Enabled: true, Ranges: []models.TimeRange{
			{Start: "09:00", End: "12:00"},
			{Start: "11:00", End: "14:00"},
		}},
	}
	svc := newTestService(settings, &fakeConsultationRepo{}, &fakeReservationRepo{}, nil, now)

	slots, err := svc.GetAvailableSlots(context.Background(), "cons-1", now, now.AddDate(0, 0, 2), models.SlotFilters{}, 50)
	require.NoError(t, err)

	// 09:00-12:00 and 11:00-14:00 coalesce into one 09:00-14:00 window, so
	// the 11:00 slot appears exactly once.
	var times []string
	for _, slot := range slots {
		times = append(times, slot.LocalTime)
	}
	assert.Equal(t, []string{"09:00", "10:00", "11:00", "12:00", "13:00"}, times)
}
