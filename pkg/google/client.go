// Package google implements the remote service adapters on top of the
// Google Tasks, Gmail and Calendar APIs.
package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	calendar "google.golang.org/api/calendar/v3"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	tasks "google.golang.org/api/tasks/v1"

	"github.com/dmaraujo/hermes-sync/pkg/auth"
	"github.com/dmaraujo/hermes-sync/pkg/model"
)

// Services bundles the three authenticated adapters.
type Services struct {
	Tasks    *TasksClient
	Mail     *MailClient
	Calendar *CalendarClient
}

// NewServices builds all adapters from one authenticated HTTP client.
func NewServices(ctx context.Context) (*Services, error) {
	client, err := auth.GetClient(ctx, auth.Scopes)
	if err != nil {
		return nil, err
	}

	taskSrv, err := tasks.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Tasks client: %w", err)
	}
	mailSrv, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Gmail client: %w", err)
	}
	calSrv, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Calendar client: %w", err)
	}

	return &Services{
		Tasks:    NewTasksClient(taskSrv),
		Mail:     NewMailClient(mailSrv),
		Calendar: NewCalendarClient(calSrv),
	}, nil
}

// mapErr translates remote "gone" responses into model.ErrNotFound so
// callers can self-heal. The tasks API answers 400 as well as 404 for
// ids it no longer knows.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) &&
		(gerr.Code == http.StatusNotFound || gerr.Code == http.StatusBadRequest) {
		return fmt.Errorf("%w: %v", model.ErrNotFound, err)
	}
	return err
}
