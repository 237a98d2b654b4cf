package google

import (
	"context"
	"fmt"
	"time"

	tasks "google.golang.org/api/tasks/v1"

	"github.com/dmaraujo/hermes-sync/pkg/model"
)

// maxRemoteTasks caps how many tasks one reconciliation pass will page
// through.
const maxRemoteTasks = 200

// TasksClient adapts the Google Tasks API to the reconciler.
type TasksClient struct {
	srv *tasks.Service
}

// NewTasksClient wraps an authenticated tasks service.
func NewTasksClient(srv *tasks.Service) *TasksClient {
	return &TasksClient{srv: srv}
}

// ListTaskLists returns all remote task lists.
func (c *TasksClient) ListTaskLists(ctx context.Context) ([]model.TaskList, error) {
	res, err := c.srv.Tasklists.List().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to list task lists: %w", err)
	}
	out := make([]model.TaskList, 0, len(res.Items))
	for _, item := range res.Items {
		out = append(out, model.TaskList{ID: item.Id, Title: item.Title})
	}
	return out, nil
}

// ListTasks fetches all tasks in a list, completed and hidden included,
// paginating until exhaustion or the result cap.
func (c *TasksClient) ListTasks(ctx context.Context, listID string) ([]model.RemoteTask, error) {
	var out []model.RemoteTask
	pageToken := ""
	for {
		call := c.srv.Tasks.List(listID).
			ShowCompleted(true).
			ShowHidden(true).
			MaxResults(100).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		res, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("unable to list tasks: %w", err)
		}
		for _, item := range res.Items {
			out = append(out, fromAPI(item))
		}
		pageToken = res.NextPageToken
		if pageToken == "" || len(out) >= maxRemoteTasks {
			break
		}
	}
	return out, nil
}

// Insert creates a remote task and returns it with its server id and
// updated timestamp.
func (c *TasksClient) Insert(ctx context.Context, listID string, t model.RemoteTask) (model.RemoteTask, error) {
	created, err := c.srv.Tasks.Insert(listID, toAPI(t)).Context(ctx).Do()
	if err != nil {
		return model.RemoteTask{}, fmt.Errorf("unable to insert task: %w", err)
	}
	return fromAPI(created), nil
}

// Update replaces the remote task's full field set.
func (c *TasksClient) Update(ctx context.Context, listID string, t model.RemoteTask) (model.RemoteTask, error) {
	body := toAPI(t)
	body.Id = t.ID
	updated, err := c.srv.Tasks.Update(listID, t.ID, body).Context(ctx).Do()
	if err != nil {
		return model.RemoteTask{}, mapErr(err)
	}
	return fromAPI(updated), nil
}

// Delete removes a remote task. A task already gone surfaces as
// model.ErrNotFound.
func (c *TasksClient) Delete(ctx context.Context, listID, taskID string) error {
	if err := c.srv.Tasks.Delete(listID, taskID).Context(ctx).Do(); err != nil {
		return mapErr(err)
	}
	return nil
}

func fromAPI(t *tasks.Task) model.RemoteTask {
	updated, _ := time.Parse(time.RFC3339, t.Updated)
	return model.RemoteTask{
		ID:        t.Id,
		Title:     t.Title,
		Notes:     t.Notes,
		Status:    t.Status,
		Due:       t.Due,
		Completed: stringValue(t.Completed),
		Updated:   updated,
	}
}

func toAPI(t model.RemoteTask) *tasks.Task {
	return &tasks.Task{
		Title:  t.Title,
		Notes:  t.Notes,
		Status: t.Status,
		Due:    t.Due,
	}
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
