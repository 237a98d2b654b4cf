package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/dmaraujo/hermes-sync/pkg/config"
	"github.com/dmaraujo/hermes-sync/pkg/model"
	"github.com/dmaraujo/hermes-sync/pkg/store"
)

// fakeTasks is an in-memory TasksAPI recording every mutation.
type fakeTasks struct {
	lists  []model.TaskList
	remote map[string][]model.RemoteTask

	inserted []model.RemoteTask
	updated  []model.RemoteTask
	deleted  []string

	updateErr map[string]error // remote task id -> error
	deleteErr map[string]error

	now    time.Time
	nextID int
}

func newFakeTasks(listTitle string, remote ...model.RemoteTask) *fakeTasks {
	return &fakeTasks{
		lists:     []model.TaskList{{ID: "list-1", Title: listTitle}},
		remote:    map[string][]model.RemoteTask{"list-1": remote},
		updateErr: make(map[string]error),
		deleteErr: make(map[string]error),
		now:       time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fakeTasks) ListTaskLists(ctx context.Context) ([]model.TaskList, error) {
	return f.lists, nil
}

func (f *fakeTasks) ListTasks(ctx context.Context, listID string) ([]model.RemoteTask, error) {
	return f.remote[listID], nil
}

func (f *fakeTasks) Insert(ctx context.Context, listID string, t model.RemoteTask) (model.RemoteTask, error) {
	f.nextID++
	t.ID = fmt.Sprintf("remote-%d", f.nextID)
	t.Updated = f.now
	f.inserted = append(f.inserted, t)
	f.remote[listID] = append(f.remote[listID], t)
	return t, nil
}

func (f *fakeTasks) Update(ctx context.Context, listID string, t model.RemoteTask) (model.RemoteTask, error) {
	if err := f.updateErr[t.ID]; err != nil {
		return model.RemoteTask{}, err
	}
	t.Updated = f.now
	f.updated = append(f.updated, t)
	return t, nil
}

func (f *fakeTasks) Delete(ctx context.Context, listID, taskID string) error {
	if err := f.deleteErr[taskID]; err != nil {
		return err
	}
	f.deleted = append(f.deleted, taskID)
	return nil
}

// fakeCalendar serves a fixed event set.
type fakeCalendar struct {
	events []model.CalendarEvent
	err    error
}

func (f *fakeCalendar) Events(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]model.CalendarEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.events, nil
}

// newTestSyncer wires a Syncer over the in-memory store with a fake
// clock pinned to a known instant.
func newTestSyncer(st *store.Memory, tasks TasksAPI, cal CalendarAPI) (*Syncer, *FakeClock) {
	clock := NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	cfg := config.Default()
	return NewSyncer(st, tasks, cal, cfg, clock, NewRunLog(st, clock)), clock
}
