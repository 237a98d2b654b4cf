package sync

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dmaraujo/hermes-sync/pkg/model"
	"github.com/dmaraujo/hermes-sync/pkg/store"
)

func TestPushCreatesRemoteAndPersistsLink(t *testing.T) {
	ft := newFakeTasks("General tasks")
	st := store.NewMemory()
	local := model.Task{
		ID:        "t1",
		Title:     "Prepare the bid",
		Status:    model.StatusPending,
		DueDate:   "2025-06-05",
		StartTime: "09:00",
		Notes:     "bring the figures",
		UpdatedAt: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
	}
	if err := st.PutTask(context.Background(), &local); err != nil {
		t.Fatal(err)
	}
	s, _ := newTestSyncer(st, ft, &fakeCalendar{})

	if err := s.Push(context.Background()); err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	if len(ft.inserted) != 1 {
		t.Fatalf("Expected 1 insert, got %d", len(ft.inserted))
	}
	body := ft.inserted[0]
	if body.Status != "needsAction" {
		t.Errorf("Expected status needsAction, got %s", body.Status)
	}
	if body.Due != "2025-06-05T09:00:00Z" {
		t.Errorf("Expected due with folded start time, got %s", body.Due)
	}
	if !strings.Contains(body.Notes, "[Time: 09:00 - 10:00]") {
		t.Errorf("Expected synthesized time block in notes, got %q", body.Notes)
	}

	tasks, _ := st.ListTasks(context.Background())
	got := tasks[0]
	if got.ExternalID != body.ID {
		t.Errorf("Expected the remote id %s to be persisted, got %s", body.ID, got.ExternalID)
	}
	if !got.UpdatedAt.Equal(ft.now) {
		t.Errorf("Expected UpdatedAt to adopt the remote instant, got %v", got.UpdatedAt)
	}
	if got.EndTime != "10:00" {
		t.Errorf("Expected synthesized end time to be persisted, got %s", got.EndTime)
	}
}

func TestPushEqualTimestampSkipsUpdate(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	ft := newFakeTasks("General tasks", model.RemoteTask{
		ID:      "g1",
		Title:   "Stable",
		Status:  "needsAction",
		Updated: base,
	})
	st := store.NewMemory()
	local := model.Task{
		ID:         "t1",
		Title:      "Stable",
		ExternalID: "g1",
		Status:     model.StatusInProgress,
		UpdatedAt:  base,
	}
	if err := st.PutTask(context.Background(), &local); err != nil {
		t.Fatal(err)
	}
	s, _ := newTestSyncer(st, ft, &fakeCalendar{})

	if err := s.Push(context.Background()); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if len(ft.updated) != 0 {
		t.Errorf("Equal timestamps must not update the remote, got %d updates", len(ft.updated))
	}
}

func TestPushDeletesRemoteAndLocalRow(t *testing.T) {
	ft := newFakeTasks("General tasks", model.RemoteTask{
		ID: "g1", Title: "Doomed", Status: "needsAction",
		Updated: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	})
	st := store.NewMemory()
	local := model.Task{ID: "t1", Title: "Doomed", ExternalID: "g1", Status: model.StatusDeleted}
	if err := st.PutTask(context.Background(), &local); err != nil {
		t.Fatal(err)
	}
	s, _ := newTestSyncer(st, ft, &fakeCalendar{})

	if err := s.Push(context.Background()); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if len(ft.deleted) != 1 || ft.deleted[0] != "g1" {
		t.Errorf("Expected remote delete of g1, got %v", ft.deleted)
	}
	tasks, _ := st.ListTasks(context.Background())
	if len(tasks) != 0 {
		t.Errorf("Expected the local row to be gone, found %d tasks", len(tasks))
	}
}

func TestPushToleratesAlreadyDeletedRemote(t *testing.T) {
	ft := newFakeTasks("General tasks")
	ft.deleteErr["g1"] = model.ErrNotFound
	st := store.NewMemory()
	local := model.Task{ID: "t1", Title: "Gone remotely", ExternalID: "g1", Status: model.StatusDeleted}
	if err := st.PutTask(context.Background(), &local); err != nil {
		t.Fatal(err)
	}
	s, _ := newTestSyncer(st, ft, &fakeCalendar{})

	if err := s.Push(context.Background()); err != nil {
		t.Fatalf("Push must tolerate a missing remote on delete: %v", err)
	}
	tasks, _ := st.ListTasks(context.Background())
	if len(tasks) != 0 {
		t.Errorf("Expected the local row to be gone, found %d tasks", len(tasks))
	}
}

func TestPushUnlinksWhenRemoteVanished(t *testing.T) {
	ft := newFakeTasks("General tasks")
	ft.updateErr["g1"] = model.ErrNotFound
	st := store.NewMemory()
	local := model.Task{
		ID:         "t1",
		Title:      "Orphaned",
		ExternalID: "g1",
		Status:     model.StatusInProgress,
		UpdatedAt:  time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
	}
	if err := st.PutTask(context.Background(), &local); err != nil {
		t.Fatal(err)
	}
	s, _ := newTestSyncer(st, ft, &fakeCalendar{})

	if err := s.Push(context.Background()); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	tasks, _ := st.ListTasks(context.Background())
	if tasks[0].ExternalID != "" {
		t.Errorf("Expected the task to be unlinked, still has %s", tasks[0].ExternalID)
	}

	// The next push recreates it.
	if err := s.Push(context.Background()); err != nil {
		t.Fatalf("Second push failed: %v", err)
	}
	if len(ft.inserted) != 1 {
		t.Errorf("Expected the unlinked task to be recreated, got %d inserts", len(ft.inserted))
	}
}

func TestPushSkipsSystemTasks(t *testing.T) {
	ft := newFakeTasks("General tasks")
	st := store.NewMemory()
	for _, task := range []model.Task{
		{ID: "t1", Title: "Internal marker", Category: model.SystemCategory, Status: model.StatusPending},
		{ID: "t2", Title: "Internal scoped", Category: "SYSTEM:runs", Status: model.StatusPending},
	} {
		task := task
		if err := st.PutTask(context.Background(), &task); err != nil {
			t.Fatal(err)
		}
	}
	s, _ := newTestSyncer(st, ft, &fakeCalendar{})

	if err := s.Push(context.Background()); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if len(ft.inserted) != 0 {
		t.Errorf("System tasks must never be pushed, got %d inserts", len(ft.inserted))
	}
}

func TestPushThenPullDoesNotOscillate(t *testing.T) {
	ft := newFakeTasks("General tasks")
	st := store.NewMemory()
	local := model.Task{
		ID:        "t1",
		Title:     "Steady",
		Status:    model.StatusPending,
		UpdatedAt: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
	}
	if err := st.PutTask(context.Background(), &local); err != nil {
		t.Fatal(err)
	}
	s, _ := newTestSyncer(st, ft, &fakeCalendar{})

	if err := s.Push(context.Background()); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if err := s.Pull(context.Background()); err != nil {
		t.Fatalf("Pull failed: %v", err)
	}
	if err := s.Push(context.Background()); err != nil {
		t.Fatalf("Second push failed: %v", err)
	}
	if len(ft.inserted) != 1 {
		t.Errorf("Expected exactly one insert across the cycle, got %d", len(ft.inserted))
	}
	if len(ft.updated) != 0 {
		t.Errorf("A settled task must not bounce updates, got %d", len(ft.updated))
	}
}
