// Package sync is the reconciliation engine: PUSH and PULL task stages,
// the calendar mirror and the run orchestrator.
package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmaraujo/hermes-sync/pkg/config"
	"github.com/dmaraujo/hermes-sync/pkg/model"
	"github.com/dmaraujo/hermes-sync/pkg/store"
)

// ErrListNotFound means the configured remote task list does not exist.
// It aborts only the stage that hit it.
var ErrListNotFound = errors.New("task list not found")

// TasksAPI is the remote task service as the reconciler consumes it.
type TasksAPI interface {
	ListTaskLists(ctx context.Context) ([]model.TaskList, error)
	ListTasks(ctx context.Context, listID string) ([]model.RemoteTask, error)
	Insert(ctx context.Context, listID string, t model.RemoteTask) (model.RemoteTask, error)
	Update(ctx context.Context, listID string, t model.RemoteTask) (model.RemoteTask, error)
	Delete(ctx context.Context, listID, taskID string) error
}

// CalendarAPI is the remote calendar as the mirror consumes it.
type CalendarAPI interface {
	Events(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]model.CalendarEvent, error)
}

// Syncer runs the individual reconciliation stages against one store
// and one set of remote adapters.
type Syncer struct {
	store store.Store
	tasks TasksAPI
	cal   CalendarAPI
	cfg   *config.Config
	clock Clock
	log   *RunLog
}

// NewSyncer wires a reconciler.
func NewSyncer(st store.Store, tasks TasksAPI, cal CalendarAPI, cfg *config.Config, clock Clock, log *RunLog) *Syncer {
	return &Syncer{store: st, tasks: tasks, cal: cal, cfg: cfg, clock: clock, log: log}
}

// findListID resolves the configured task list against the remote list
// titles, tolerating case, spacing, hyphenation and a plural "s".
func (s *Syncer) findListID(ctx context.Context) (string, error) {
	lists, err := s.tasks.ListTaskLists(ctx)
	if err != nil {
		return "", err
	}
	want := normalizeListName(s.cfg.TaskList)
	for _, l := range lists {
		if normalizeListName(l.Title) == want {
			return l.ID, nil
		}
	}
	titles := make([]string, 0, len(lists))
	for _, l := range lists {
		titles = append(titles, l.Title)
	}
	return "", fmt.Errorf("%w: %q (available: %s)",
		ErrListNotFound, s.cfg.TaskList, strings.Join(titles, ", "))
}

func normalizeListName(name string) string {
	name = strings.ToLower(name)
	name = strings.NewReplacer(" ", "", "-", "", "_", "").Replace(name)
	return strings.TrimSuffix(name, "s")
}

// activeRules returns the dynamic classifier rules from the store when
// present, otherwise the configured defaults.
func (s *Syncer) activeRules(ctx context.Context) []model.CategoryRule {
	rules, err := s.store.KeywordRules(ctx)
	if err != nil || len(rules) == 0 {
		return s.cfg.Categories
	}
	return rules
}

// remoteStatus maps a local status onto the remote binary vocabulary.
func remoteStatus(status string) string {
	if status == model.StatusDone {
		return "completed"
	}
	return "needsAction"
}

// localStatus maps the remote binary vocabulary onto local statuses.
func localStatus(remote string) string {
	if remote == "completed" {
		return model.StatusDone
	}
	return model.StatusInProgress
}

// remoteDue builds the RFC3339 due value for a task, folding the start
// time into the timestamp when one is set.
func remoteDue(t *model.Task) string {
	if t.DueDate == "" {
		return ""
	}
	if t.StartTime != "" {
		return fmt.Sprintf("%sT%s:00Z", t.DueDate, t.StartTime)
	}
	return t.DueDate + "T00:00:00Z"
}

// dueDate strips a remote RFC3339 due down to its date part.
func dueDate(remoteDue string) string {
	if remoteDue == "" {
		return ""
	}
	date, _, _ := strings.Cut(remoteDue, "T")
	return date
}
