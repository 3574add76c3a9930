package reservation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	consultationRepo "appointa/database/repository/consultation"
	"appointa/models"
	"appointa/services/calendar"
)

type memReservationRepo struct {
	mu   sync.Mutex
	rows map[string]*models.PendingReservation
}

func newMemReservationRepo() *memReservationRepo {
	return &memReservationRepo{rows: map[string]*models.PendingReservation{}}
}

func (m *memReservationRepo) Create(ctx context.Context, r *models.PendingReservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.rows[r.ID] = &cp
	return nil
}

func (m *memReservationRepo) GetByToken(ctx context.Context, token string) (*models.PendingReservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.Token == token {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memReservationRepo) LatestAwaitingForConversation(ctx context.Context, conversationID string, now time.Time) (*models.PendingReservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *models.PendingReservation
	for _, r := range m.rows {
		if r.ConversationID != conversationID || r.Status != models.ReservationAwaitingConfirm || !r.ExpiresAt.After(now) {
			continue
		}
		if latest == nil || r.CreatedAt.After(latest.CreatedAt) {
			latest = r
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (m *memReservationRepo) HasLiveHoldAt(ctx context.Context, consultantID string, at, now time.Time, excludeConversation string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ConsultantID == consultantID && r.StartAt.Equal(at) &&
			r.Status == models.ReservationAwaitingConfirm && r.ExpiresAt.After(now) &&
			(excludeConversation == "" || r.ConversationID != excludeConversation) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memReservationRepo) ListLiveOverlapping(ctx context.Context, consultantID string, from, to, now time.Time) ([]models.PendingReservation, error) {
	return nil, nil
}

func (m *memReservationRepo) SupersedeForConversation(ctx context.Context, conversationID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, r := range m.rows {
		if r.ConversationID == conversationID && r.Status == models.ReservationAwaitingConfirm {
			r.Status = models.ReservationSuperseded
			n++
		}
	}
	return n, nil
}

func (m *memReservationRepo) ConfirmTransition(ctx context.Context, id string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.Status != models.ReservationAwaitingConfirm || !r.ExpiresAt.After(now) {
		return false, nil
	}
	r.Status = models.ReservationConfirmed
	r.ConfirmedAt = &now
	return true, nil
}

func (m *memReservationRepo) MarkStatus(ctx context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rows[id]; ok {
		r.Status = status
	}
	return nil
}

func (m *memReservationRepo) SetConsultationRef(ctx context.Context, id, consultationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rows[id]; ok && r.ConsultationID == "" {
		r.ConsultationID = consultationID
	}
	return nil
}

func (m *memReservationRepo) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, r := range m.rows {
		if r.Status == models.ReservationAwaitingConfirm && !r.ExpiresAt.After(now) {
			r.Status = models.ReservationExpired
			n++
		}
	}
	return n, nil
}

func (m *memReservationRepo) EnsureIndexes() error { return nil }

func (m *memReservationRepo) byToken(token string) *models.PendingReservation {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.Token == token {
			cp := *r
			return &cp
		}
	}
	return nil
}

type memConsultationRepo struct {
	mu   sync.Mutex
	rows map[string]*models.Consultation
}

func newMemConsultationRepo() *memConsultationRepo {
	return &memConsultationRepo{rows: map[string]*models.Consultation{}}
}

func (m *memConsultationRepo) Create(ctx context.Context, c *models.Consultation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rows {
		if existing.ConsultantID == c.ConsultantID && existing.ScheduledAt.Equal(c.ScheduledAt) &&
			existing.Status != models.ConsultationCancelled {
			return consultationRepo.ErrDuplicateSlot
		}
	}
	cp := *c
	m.rows[c.ID] = &cp
	return nil
}

func (m *memConsultationRepo) GetByID(ctx context.Context, id string) (*models.Consultation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.rows[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (m *memConsultationRepo) ExistsAt(ctx context.Context, consultantID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.rows {
		if c.ConsultantID == consultantID && c.ScheduledAt.Equal(at) && c.Status != models.ConsultationCancelled {
			return true, nil
		}
	}
	return false, nil
}

func (m *memConsultationRepo) ListOverlapping(ctx context.Context, consultantID string, from, to time.Time) ([]models.Consultation, error) {
	return nil, nil
}

func (m *memConsultationRepo) ListForClientInRange(ctx context.Context, clientID string, from, to time.Time) ([]models.Consultation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Consultation
	for _, c := range m.rows {
		if c.ClientID == clientID && c.Status != models.ConsultationCancelled &&
			!c.ScheduledAt.Before(from) && !c.ScheduledAt.After(to) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memConsultationRepo) HasConflict(ctx context.Context, consultantID string, from, to time.Time, excludeID string) (bool, error) {
	return false, nil
}

func (m *memConsultationRepo) UpdateSchedule(ctx context.Context, id string, newStart time.Time, newDuration int, action *models.CompletedAction) error {
	return nil
}

func (m *memConsultationRepo) Cancel(ctx context.Context, id string, action *models.CompletedAction) error {
	return nil
}

func (m *memConsultationRepo) AddAttendees(ctx context.Context, id string, emails []string, action *models.CompletedAction) error {
	return nil
}

func (m *memConsultationRepo) SetCalendarRef(ctx context.Context, id, googleEventID, meetLink string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.rows[id]; ok {
		c.GoogleEventID = googleEventID
		c.MeetLink = meetLink
	}
	return nil
}

func (m *memConsultationRepo) EnsureIndexes() error { return nil }

func (m *memConsultationRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type memClientRepo struct {
	clients map[string]*models.Client
}

func (m *memClientRepo) GetByID(ctx context.Context, id string) (*models.Client, error) {
	if c, ok := m.clients[id]; ok {
		return c, nil
	}
	return nil, nil
}

func (m *memClientRepo) GetByPhone(ctx context.Context, phone string) (*models.Client, error) {
	return nil, nil
}
func (m *memClientRepo) Upsert(ctx context.Context, c *models.Client) error { return nil }
func (m *memClientRepo) EnsureIndexes() error                               { return nil }

type recordingCalendar struct {
	created int
	fail    bool
}

func (r *recordingCalendar) ListBusyEvents(ctx context.Context, ownerID string, from, to time.Time) ([]calendar.BusyEvent, error) {
	return nil, nil
}

func (r *recordingCalendar) CreateEvent(ctx context.Context, ownerID string, in calendar.EventInput) (*calendar.EventRef, error) {
	if r.fail {
		return nil, assert.AnError
	}
	r.created++
	return &calendar.EventRef{EventID: "evt-123", MeetLink: "https://meet.example/abc"}, nil
}

func (r *recordingCalendar) UpdateEvent(ctx context.Context, ownerID, eventID string, newStart time.Time, durationMinutes int) error {
	return nil
}
func (r *recordingCalendar) DeleteEvent(ctx context.Context, ownerID, eventID string) error {
	return nil
}
func (r *recordingCalendar) AddAttendees(ctx context.Context, ownerID, eventID string, emails []string) ([]string, []string, error) {
	return emails, nil, nil
}

type recordingReminders struct {
	enqueued []string
}

func (r *recordingReminders) EnqueueReminder(ctx context.Context, c *models.Consultation) error {
	r.enqueued = append(r.enqueued, c.ID)
	return nil
}

type managerFixture struct {
	svc           *DefaultService
	reservations  *memReservationRepo
	consultations *memConsultationRepo
	clients       *memClientRepo
	cal           *recordingCalendar
	reminders     *recordingReminders
	now           time.Time
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()
	f := &managerFixture{
		reservations:  newMemReservationRepo(),
		consultations: newMemConsultationRepo(),
		clients:       &memClientRepo{clients: map[string]*models.Client{}},
		cal:           &recordingCalendar{},
		reminders:     &recordingReminders{},
		now:           time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC),
	}
	f.svc = NewDefaultService(f.reservations, f.consultations, f.clients, f.cal, f.reminders, 10*time.Minute)
	f.svc.now = func() time.Time { return f.now }
	f.svc.loc = time.UTC
	return f
}

func proposeReq(conversationID string, start time.Time) ProposeRequest {
	return ProposeRequest{
		ConsultantID:   "cons-1",
		ClientID:       "client-1",
		ClientEmail:    "lead@example.com",
		StartAt:        start,
		ConversationID: conversationID,
	}
}

func TestProposeThenConfirm(t *testing.T) {
	f := newManagerFixture(t)
	start := time.Date(2025, 11, 5, 15, 0, 0, 0, time.UTC)

	token, err := f.svc.Propose(context.Background(), proposeReq("conv-1", start))
	require.NoError(t, err)
	require.Len(t, token, 32)

	booking, err := f.svc.Confirm(context.Background(), ConfirmRequest{Token: token, ClientID: "client-1"})
	require.NoError(t, err)
	assert.Equal(t, models.ConsultationScheduled, booking.Status)
	assert.Equal(t, start, booking.ScheduledAt)
	assert.Equal(t, 60, booking.DurationMinutes)
	assert.Equal(t, "lead@example.com", booking.ClientEmail)
	assert.Equal(t, "evt-123", booking.GoogleEventID)
	assert.Equal(t, "https://meet.example/abc", booking.MeetLink)

	hold := f.reservations.byToken(token)
	require.NotNil(t, hold)
	assert.Equal(t, models.ReservationConfirmed, hold.Status)
	assert.Equal(t, booking.ID, hold.ConsultationID)
	assert.Equal(t, []string{booking.ID}, f.reminders.enqueued)
}

func TestProposeSupersedesPriorHold(t *testing.T) {
	f := newManagerFixture(t)
	first, err := f.svc.Propose(context.Background(), proposeReq("conv-1", time.Date(2025, 11, 5, 15, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	second, err := f.svc.Propose(context.Background(), proposeReq("conv-1", time.Date(2025, 11, 5, 16, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	assert.Equal(t, models.ReservationSuperseded, f.reservations.byToken(first).Status)
	assert.Equal(t, models.ReservationAwaitingConfirm, f.reservations.byToken(second).Status)
}

func TestProposeRejectsBookedSlot(t *testing.T) {
	f := newManagerFixture(t)
	start := time.Date(2025, 11, 5, 15, 0, 0, 0, time.UTC)
	require.NoError(t, f.consultations.Create(context.Background(), &models.Consultation{
		ID: "c1", ConsultantID: "cons-1", ScheduledAt: start, DurationMinutes: 60,
		Status: models.ConsultationScheduled,
	}))

	_, err := f.svc.Propose(context.Background(), proposeReq("conv-1", start))
	sf, ok := AsSoftFail(err)
	require.True(t, ok)
	assert.Equal(t, CodeSlotTaken, sf.Code)
}

func TestProposeRejectsForeignLiveHold(t *testing.T) {
	f := newManagerFixture(t)
	start := time.Date(2025, 11, 5, 15, 0, 0, 0, time.UTC)
	_, err := f.svc.Propose(context.Background(), proposeReq("conv-A", start))
	require.NoError(t, err)

	_, err = f.svc.Propose(context.Background(), proposeReq("conv-B", start))
	sf, ok := AsSoftFail(err)
	require.True(t, ok)
	assert.Equal(t, CodePendingExists, sf.Code)
}

func TestProposeRejectsPastStart(t *testing.T) {
	f := newManagerFixture(t)
	_, err := f.svc.Propose(context.Background(), proposeReq("conv-1", f.now.Add(-time.Hour)))
	sf, ok := AsSoftFail(err)
	require.True(t, ok)
	assert.Equal(t, CodePastDate, sf.Code)
}

func TestProposeMonthlyLimit(t *testing.T) {
	f := newManagerFixture(t)
	f.clients.clients["client-1"] = &models.Client{ID: "client-1", MonthlyConsultationLimit: 1}
	require.NoError(t, f.consultations.Create(context.Background(), &models.Consultation{
		ID: "c1", ConsultantID: "cons-1", ClientID: "client-1",
		ScheduledAt: time.Date(2025, 11, 10, 15, 0, 0, 0, time.UTC), DurationMinutes: 60,
		Status: models.ConsultationScheduled,
	}))

	_, err := f.svc.Propose(context.Background(), proposeReq("conv-1", time.Date(2025, 11, 20, 15, 0, 0, 0, time.UTC)))
	sf, ok := AsSoftFail(err)
	require.True(t, ok)
	assert.Equal(t, CodeLimitReached, sf.Code)

	// Next month is fine.
	_, err = f.svc.Propose(context.Background(), proposeReq("conv-1", time.Date(2025, 12, 1, 15, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
}

func TestConfirmIdempotentReplay(t *testing.T) {
	f := newManagerFixture(t)
	token, err := f.svc.Propose(context.Background(), proposeReq("conv-1", time.Date(2025, 11, 5, 15, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	first, err := f.svc.Confirm(context.Background(), ConfirmRequest{Token: token})
	require.NoError(t, err)
	second, err := f.svc.Confirm(context.Background(), ConfirmRequest{Token: token})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, f.consultations.count())
	assert.Len(t, f.reminders.enqueued, 1)
	assert.Equal(t, 1, f.cal.created)
}

func TestConfirmByConversation(t *testing.T) {
	f := newManagerFixture(t)
	_, err := f.svc.Propose(context.Background(), proposeReq("conv-1", time.Date(2025, 11, 5, 15, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	booking, err := f.svc.Confirm(context.Background(), ConfirmRequest{ConversationID: "conv-1"})
	require.NoError(t, err)
	assert.Equal(t, "conv-1", booking.ConversationID)
}

func TestConfirmUnknownToken(t *testing.T) {
	f := newManagerFixture(t)
	_, err := f.svc.Confirm(context.Background(), ConfirmRequest{Token: "deadbeefdeadbeefdeadbeefdeadbeef"})
	sf, ok := AsSoftFail(err)
	require.True(t, ok)
	assert.Equal(t, CodeReservationNotFound, sf.Code)
}

func TestConfirmExpiredHold(t *testing.T) {
	f := newManagerFixture(t)
	token, err := f.svc.Propose(context.Background(), proposeReq("conv-1", time.Date(2025, 11, 5, 15, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	f.now = f.now.Add(11 * time.Minute)
	_, err = f.svc.Confirm(context.Background(), ConfirmRequest{Token: token})
	sf, ok := AsSoftFail(err)
	require.True(t, ok)
	assert.Equal(t, CodeExpired, sf.Code)
	assert.Equal(t, models.ReservationExpired, f.reservations.byToken(token).Status)
	assert.Equal(t, 0, f.consultations.count())
}

func TestConfirmOwnershipMismatch(t *testing.T) {
	f := newManagerFixture(t)
	token, err := f.svc.Propose(context.Background(), proposeReq("conv-1", time.Date(2025, 11, 5, 15, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	_, err = f.svc.Confirm(context.Background(), ConfirmRequest{Token: token, ClientID: "someone-else"})
	sf, ok := AsSoftFail(err)
	require.True(t, ok)
	assert.Equal(t, CodeNotOwner, sf.Code)
	assert.Equal(t, models.ReservationAwaitingConfirm, f.reservations.byToken(token).Status)
}

func TestConfirmLosesSlotRace(t *testing.T) {
	f := newManagerFixture(t)
	start := time.Date(2025, 11, 5, 15, 0, 0, 0, time.UTC)
	token, err := f.svc.Propose(context.Background(), proposeReq("conv-1", start))
	require.NoError(t, err)

	// A booking lands through another path after the hold was taken.
	require.NoError(t, f.consultations.Create(context.Background(), &models.Consultation{
		ID: "other", ConsultantID: "cons-1", ScheduledAt: start, DurationMinutes: 60,
		Status: models.ConsultationScheduled,
	}))

	_, err = f.svc.Confirm(context.Background(), ConfirmRequest{Token: token})
	sf, ok := AsSoftFail(err)
	require.True(t, ok)
	assert.Equal(t, CodeSlotTaken, sf.Code)
	// The compensating update leaves no confirmed-without-booking row.
	assert.Equal(t, models.ReservationCancelled, f.reservations.byToken(token).Status)
	assert.Equal(t, 1, f.consultations.count())
}

func TestConcurrentConfirmSingleWinner(t *testing.T) {
	f := newManagerFixture(t)
	start := time.Date(2025, 11, 5, 15, 0, 0, 0, time.UTC)
	token, err := f.svc.Propose(context.Background(), proposeReq("conv-1", start))
	require.NoError(t, err)

	// Replay protection only applies once the back-link is written, so a
	// true race is two goroutines hitting the CAS window together.
	var wg sync.WaitGroup
	results := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.svc.Confirm(context.Background(), ConfirmRequest{Token: token})
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range results {
		if err == nil {
			winners++
			continue
		}
		sf, ok := AsSoftFail(err)
		require.True(t, ok, "unexpected hard failure: %v", err)
		assert.Contains(t, []string{CodeAlreadyResolved, CodeSlotTaken}, sf.Code)
	}
	assert.GreaterOrEqual(t, winners, 1)
	assert.Equal(t, 1, f.consultations.count())
}

func TestCancelExpiredSweep(t *testing.T) {
	f := newManagerFixture(t)
	_, err := f.svc.Propose(context.Background(), proposeReq("conv-1", time.Date(2025, 11, 5, 15, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	f.now = f.now.Add(time.Hour)
	n, err := f.svc.CancelExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestGetStatusValidation(t *testing.T) {
	f := newManagerFixture(t)

	_, err := f.svc.GetStatus(context.Background(), "client-1", 13, 2025)
	sf, ok := AsSoftFail(err)
	require.True(t, ok)
	assert.Equal(t, CodeInvalidMonth, sf.Code)

	_, err = f.svc.GetStatus(context.Background(), "client-1", 5, 1999)
	sf, ok = AsSoftFail(err)
	require.True(t, ok)
	assert.Equal(t, CodeInvalidYear, sf.Code)

	require.NoError(t, f.consultations.Create(context.Background(), &models.Consultation{
		ID: "c1", ConsultantID: "cons-1", ClientID: "client-1",
		ScheduledAt: time.Date(2025, 11, 10, 15, 0, 0, 0, time.UTC), DurationMinutes: 60,
		Status: models.ConsultationScheduled,
	}))
	bookings, err := f.svc.GetStatus(context.Background(), "client-1", 11, 2025)
	require.NoError(t, err)
	assert.Len(t, bookings, 1)
}

func TestMonthWindowsShareZone(t *testing.T) {
	f := newManagerFixture(t)
	f.svc.loc = time.FixedZone("UTC+1", 3600)
	f.clients.clients["client-1"] = &models.Client{ID: "client-1", MonthlyConsultationLimit: 1}

	// 23:30 UTC on October 31 is already November 1st in the service zone.
	boundary := time.Date(2025, 10, 31, 23, 30, 0, 0, time.UTC)
	require.NoError(t, f.consultations.Create(context.Background(), &models.Consultation{
		ID: "c1", ConsultantID: "cons-1", ClientID: "client-1",
		ScheduledAt: boundary, DurationMinutes: 60,
		Status: models.ConsultationScheduled,
	}))

	// The limit check counts it toward November.
	_, err := f.svc.Propose(context.Background(), proposeReq("conv-1", time.Date(2025, 11, 20, 15, 0, 0, 0, time.UTC)))
	sf, ok := AsSoftFail(err)
	require.True(t, ok)
	assert.Equal(t, CodeLimitReached, sf.Code)

	// The status listing places it in the same month.
	bookings, err := f.svc.GetStatus(context.Background(), "client-1", 11, 2025)
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, "c1", bookings[0].ID)

	october, err := f.svc.GetStatus(context.Background(), "client-1", 10, 2025)
	require.NoError(t, err)
	assert.Empty(t, october)
}

func TestParseStart(t *testing.T) {
	now := time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)

	_, err := ParseStart("", "15:00", time.UTC, now)
	sf, _ := AsSoftFail(err)
	require.NotNil(t, sf)
	assert.Equal(t, CodeMissingDate, sf.Code)

	_, err = ParseStart("2025-11-06", "", time.UTC, now)
	sf, _ = AsSoftFail(err)
	require.NotNil(t, sf)
	assert.Equal(t, CodeMissingTime, sf.Code)

	_, err = ParseStart("06/11/2025", "15:00", time.UTC, now)
	sf, _ = AsSoftFail(err)
	require.NotNil(t, sf)
	assert.Equal(t, CodeInvalidDateFormat, sf.Code)

	_, err = ParseStart("2025-11-06", "3pm", time.UTC, now)
	sf, _ = AsSoftFail(err)
	require.NotNil(t, sf)
	assert.Equal(t, CodeInvalidTimeFormat, sf.Code)

	_, err = ParseStart("2025-11-01", "09:00", time.UTC, now)
	sf, _ = AsSoftFail(err)
	require.NotNil(t, sf)
	assert.Equal(t, CodePastDate, sf.Code)

	start, err := ParseStart("2025-11-06", "15:00", time.UTC, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 11, 6, 15, 0, 0, 0, time.UTC), start)
}
