package sync

import (
	"context"
)

// MirrorCalendar pulls a bounded window of remote events and makes the
// local mirror match it. Stale entries are pruned only when their start
// falls inside the queried window; a narrow run never deletes events it
// could not have seen.
func (s *Syncer) MirrorCalendar(ctx context.Context) error {
	now := s.clock.Now()
	timeMin := now.AddDate(0, 0, -s.cfg.CalendarWindowPast)
	timeMax := now.AddDate(0, 0, s.cfg.CalendarWindowFuture)

	s.log.Logf("Mirroring calendar %s...", s.cfg.CalendarID)
	events, err := s.cal.Events(ctx, s.cfg.CalendarID, timeMin, timeMax)
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(events))
	for _, e := range events {
		e.LastSync = now
		if err := s.store.UpsertCalendarEvent(ctx, e); err != nil {
			return err
		}
		seen[e.ExternalID] = true
	}

	locals, err := s.store.ListCalendarEvents(ctx)
	if err != nil {
		return err
	}
	pruned := 0
	for _, l := range locals {
		if seen[l.ExternalID] {
			continue
		}
		start, ok := l.StartAt()
		if !ok || start.Before(timeMin) || start.After(timeMax) {
			continue
		}
		if err := s.store.DeleteCalendarEvent(ctx, l.ExternalID); err != nil {
			return err
		}
		pruned++
	}

	s.log.Logf("[CAL] %d events synced, %d pruned", len(events), pruned)
	return nil
}
