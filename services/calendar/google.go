package calendar

import (
	"context"
	"fmt"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"appointa/config"
	"appointa/utils"
)

// GoogleCalendarService implements Service against the Google Calendar API.
// ownerID is the calendar identifier ("primary" or the consultant's shared
// calendar address).
type GoogleCalendarService struct {
	svc *gcal.Service
}

// NewGoogleCalendarService builds the API client from the configured
// service-account credentials file.
func NewGoogleCalendarService(ctx context.Context) (*GoogleCalendarService, error) {
	svc, err := gcal.NewService(ctx,
		option.WithCredentialsFile(config.AppConfig.GoogleCredentialsFile),
		option.WithScopes(gcal.CalendarScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize calendar client: %w", err)
	}
	return &GoogleCalendarService{svc: svc}, nil
}

// ListBusyEvents returns occupied windows in [from, to). Events marked
// transparent count as free and cancelled events are skipped entirely.
func (g *GoogleCalendarService) ListBusyEvents(ctx context.Context, ownerID string, from, to time.Time) ([]BusyEvent, error) {
	call := g.svc.Events.List(ownerID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(250).
		Context(ctx)

	res, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list calendar events: %w", err)
	}

	var busy []BusyEvent
	for _, ev := range res.Items {
		if ev.Status == "cancelled" || ev.Transparency == "transparent" {
			continue
		}
		if ev.Start == nil || ev.End == nil {
			continue
		}
		start, end, err := parseEventTimes(ev)
		if err != nil {
			utils.GetLogger().Sugar().Warnf("Skipping calendar event %s with unparseable times: %v", ev.Id, err)
			continue
		}
		busy = append(busy, BusyEvent{Start: start, End: end})
	}
	return busy, nil
}

// parseEventTimes handles both timed and all-day events.
func parseEventTimes(ev *gcal.Event) (time.Time, time.Time, error) {
	if ev.Start.DateTime != "" {
		start, err := time.Parse(time.RFC3339, ev.Start.DateTime)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end, err := time.Parse(time.RFC3339, ev.End.DateTime)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		return start, end, nil
	}
	// All-day events carry bare dates; treat them as busy for the whole day.
	start, err := time.Parse("2006-01-02", ev.Start.Date)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := time.Parse("2006-01-02", ev.End.Date)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

// CreateEvent creates the appointment event with a Meet link request.
func (g *GoogleCalendarService) CreateEvent(ctx context.Context, ownerID string, in EventInput) (*EventRef, error) {
	end := in.Start.Add(time.Duration(in.DurationMinutes) * time.Minute)
	event := &gcal.Event{
		Summary:     in.Summary,
		Description: in.Description,
		Start:       &gcal.EventDateTime{DateTime: in.Start.Format(time.RFC3339), TimeZone: in.Timezone},
		End:         &gcal.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: in.Timezone},
		ConferenceData: &gcal.ConferenceData{
			CreateRequest: &gcal.CreateConferenceRequest{
				RequestId:             fmt.Sprintf("appointa-%d", in.Start.Unix()),
				ConferenceSolutionKey: &gcal.ConferenceSolutionKey{Type: "hangoutsMeet"},
			},
		},
	}
	for _, email := range in.Attendees {
		event.Attendees = append(event.Attendees, &gcal.EventAttendee{Email: email})
	}

	created, err := g.svc.Events.Insert(ownerID, event).ConferenceDataVersion(1).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar event: %w", err)
	}

	ref := &EventRef{EventID: created.Id}
	if created.ConferenceData != nil {
		for _, ep := range created.ConferenceData.EntryPoints {
			if ep.EntryPointType == "video" {
				ref.MeetLink = ep.Uri
				break
			}
		}
	}
	return ref, nil
}

// UpdateEvent moves an existing event to a new start and duration.
func (g *GoogleCalendarService) UpdateEvent(ctx context.Context, ownerID, eventID string, newStart time.Time, durationMinutes int) error {
	ev, err := g.svc.Events.Get(ownerID, eventID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to fetch calendar event %s: %w", eventID, err)
	}
	end := newStart.Add(time.Duration(durationMinutes) * time.Minute)
	ev.Start = &gcal.EventDateTime{DateTime: newStart.Format(time.RFC3339), TimeZone: ev.Start.TimeZone}
	ev.End = &gcal.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: ev.End.TimeZone}

	if _, err := g.svc.Events.Update(ownerID, eventID, ev).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to update calendar event %s: %w", eventID, err)
	}
	return nil
}

// DeleteEvent removes the event; a 404/410 from the API is treated as
// already deleted.
func (g *GoogleCalendarService) DeleteEvent(ctx context.Context, ownerID, eventID string) error {
	if err := g.svc.Events.Delete(ownerID, eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete calendar event %s: %w", eventID, err)
	}
	return nil
}

// AddAttendees merges the emails into the event's attendee list. Emails
// already present are reported as skipped.
func (g *GoogleCalendarService) AddAttendees(ctx context.Context, ownerID, eventID string, emails []string) ([]string, []string, error) {
	ev, err := g.svc.Events.Get(ownerID, eventID).Context(ctx).Do()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch calendar event %s: %w", eventID, err)
	}

	existing := make(map[string]bool, len(ev.Attendees))
	for _, a := range ev.Attendees {
		existing[a.Email] = true
	}

	var added, skipped []string
	for _, email := range emails {
		if existing[email] {
			skipped = append(skipped, email)
			continue
		}
		ev.Attendees = append(ev.Attendees, &gcal.EventAttendee{Email: email})
		added = append(added, email)
	}
	if len(added) == 0 {
		return added, skipped, nil
	}

	if _, err := g.svc.Events.Update(ownerID, eventID, ev).Context(ctx).Do(); err != nil {
		return nil, nil, fmt.Errorf("failed to update attendees on event %s: %w", eventID, err)
	}
	return added, skipped, nil
}
