package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	gcal "google.golang.org/api/calendar/v3"

	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/availability"
)

// DayWindow returns [00:00:00.000, 23:59:59.999] of day's calendar date in loc.
func DayWindow(day time.Time, loc *time.Location) (time.Time, time.Time) {
	y, m, d := day.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	end := time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), loc)
	return start, end
}

// BusyIntervals returns every blocking event that touches day's window.
func (c *Client) BusyIntervals(ctx context.Context, day time.Time) (_ []availability.Interval, err error) {
	ctx, span := tracer.Start(ctx, "calendar.BusyIntervals")
	defer func() { endSpan(span, err) }()

	start, end := DayWindow(day, c.windowLoc)
	span.SetAttributes(
		attribute.String("calendar.time_min", start.Format(time.RFC3339Nano)),
		attribute.String("calendar.time_max", end.Format(time.RFC3339Nano)),
	)

	busy, err := c.listBusy(ctx, start, end, "startTime")
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("calendar.busy_count", len(busy)))
	return busy, nil
}

// IsSlotFree reports whether no blocking event overlaps [start, end).
func (c *Client) IsSlotFree(ctx context.Context, start, end time.Time) (_ bool, err error) {
	ctx, span := tracer.Start(ctx, "calendar.IsSlotFree")
	defer func() { endSpan(span, err) }()

	busy, err := c.listBusy(ctx, start, end, "")
	if err != nil {
		return false, err
	}
	slot := availability.Interval{Start: start, End: end}
	for _, b := range busy {
		if slot.Overlaps(b) {
			return false, nil
		}
	}
	return true, nil
}

func (c *Client) listBusy(ctx context.Context, start, end time.Time, orderBy string) ([]availability.Interval, error) {
	call := c.srv.Events.List(c.calendarID).
		TimeMin(start.Format(time.RFC3339Nano)).
		TimeMax(end.Format(time.RFC3339Nano)).
		SingleEvents(true)
	if orderBy != "" {
		call = call.OrderBy(orderBy)
	}

	var busy []availability.Interval
	err := call.Pages(ctx, func(page *gcal.Events) error {
		for _, ev := range page.Items {
			iv, ok, err := eventInterval(ev, c.loc)
			if err != nil {
				return err
			}
			if ok {
				busy = append(busy, iv)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	return busy, nil
}

// eventInterval maps an event to the interval it blocks. Cancelled and transparent
// events block nothing. All-day events cover their dates in loc, end date exclusive.
func eventInterval(ev *gcal.Event, loc *time.Location) (availability.Interval, bool, error) {
	if ev == nil || ev.Status == "cancelled" || ev.Transparency == "transparent" {
		return availability.Interval{}, false, nil
	}
	if ev.Start == nil || ev.End == nil {
		return availability.Interval{}, false, fmt.Errorf("event %q has no start or end", ev.Id)
	}
	start, err := eventTime(ev.Start, loc)
	if err != nil {
		return availability.Interval{}, false, fmt.Errorf("event %q start: %w", ev.Id, err)
	}
	end, err := eventTime(ev.End, loc)
	if err != nil {
		return availability.Interval{}, false, fmt.Errorf("event %q end: %w", ev.Id, err)
	}
	if !end.After(start) {
		return availability.Interval{}, false, nil
	}
	return availability.Interval{Start: start, End: end}, true, nil
}

func eventTime(t *gcal.EventDateTime, loc *time.Location) (time.Time, error) {
	if t.DateTime != "" {
		return time.Parse(time.RFC3339, t.DateTime)
	}
	if t.Date != "" {
		return time.ParseInLocation(availability.DayLayout, t.Date, loc)
	}
	return time.Time{}, errors.New("neither dateTime nor date set")
}
