package google

import (
	"context"
	"fmt"
	"time"

	calendar "google.golang.org/api/calendar/v3"

	"github.com/dmaraujo/hermes-sync/pkg/model"
)

// CalendarClient adapts the Google Calendar API, read-only, for the
// mirror sweep.
type CalendarClient struct {
	srv *calendar.Service
}

// NewCalendarClient wraps an authenticated calendar service.
func NewCalendarClient(srv *calendar.Service) *CalendarClient {
	return &CalendarClient{srv: srv}
}

// Events lists single events of calendarID within [timeMin, timeMax].
func (c *CalendarClient) Events(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]model.CalendarEvent, error) {
	res, err := c.srv.Events.List(calendarID).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve events from calendar: %w", err)
	}

	out := make([]model.CalendarEvent, 0, len(res.Items))
	for _, item := range res.Items {
		out = append(out, model.CalendarEvent{
			ExternalID: item.Id,
			Title:      item.Summary,
			Start:      eventTime(item.Start),
			End:        eventTime(item.End),
		})
	}
	return out, nil
}

// eventTime prefers the timed form; all-day events only carry a date.
func eventTime(t *calendar.EventDateTime) string {
	if t == nil {
		return ""
	}
	if t.DateTime != "" {
		return t.DateTime
	}
	return t.Date
}
