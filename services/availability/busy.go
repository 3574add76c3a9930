package availability

import (
	"context"
	"fmt"
	"time"

	"appointa/models"
	"appointa/utils"
)

// collectBusy aggregates occupied time for the consultant over [from, to)
// from three sources. Bookings and live holds are expanded by the configured
// buffers; external calendar events arrive pre-filtered and are used as-is.
// A calendar failure degrades to the two store-backed sources instead of
// failing the request.
func (s *DefaultService) collectBusy(ctx context.Context, cfg *models.AvailabilityConfig, from, to time.Time) ([]models.BusyInterval, error) {
	before := time.Duration(cfg.BufferBefore) * time.Minute
	after := time.Duration(cfg.BufferAfter) * time.Minute
	now := s.now()

	bookings, err := s.ConsultationRepo.ListOverlapping(ctx, cfg.ConsultantID, from.Add(-before), to.Add(after))
	if err != nil {
		return nil, fmt.Errorf("failed to load bookings for busy aggregation: %w", err)
	}

	var busy []models.BusyInterval
	for _, b := range bookings {
		busy = append(busy, models.BusyInterval{
			Start:  b.ScheduledAt.Add(-before),
			End:    b.EndAt().Add(after),
			Source: models.BusySourceBooking,
		})
	}

	holds, err := s.ReservationRepo.ListLiveOverlapping(ctx, cfg.ConsultantID, from.Add(-before), to.Add(after), now)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending holds for busy aggregation: %w", err)
	}
	for _, h := range holds {
		busy = append(busy, models.BusyInterval{
			Start:  h.StartAt.Add(-before),
			End:    h.EndAt().Add(after),
			Source: models.BusySourcePending,
		})
	}

	if s.Calendar != nil {
		events, err := s.Calendar.ListBusyEvents(ctx, cfg.ConsultantID, from, to)
		if err != nil {
			utils.GetLogger().Sugar().Warnf("Calendar busy lookup failed for %s, computing without external events: %v", cfg.ConsultantID, err)
		} else {
			for _, ev := range events {
				busy = append(busy, models.BusyInterval{
					Start:  ev.Start,
					End:    ev.End,
					Source: models.BusySourceExternal,
				})
			}
		}
	}

	return busy, nil
}
