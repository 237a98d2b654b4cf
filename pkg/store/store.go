package store

import (
	"context"
	"errors"

	"github.com/dmaraujo/hermes-sync/pkg/model"
)

// ErrUnavailable wraps store-level failures. Unlike adapter errors,
// which each stage absorbs, an unavailable store aborts the whole run.
var ErrUnavailable = errors.New("store unavailable")

// ErrDuplicateExternalID is returned when a write would give two tasks
// the same non-empty external id.
var ErrDuplicateExternalID = errors.New("external id already linked to another task")

// IsUnavailable reports whether err is a store-level failure.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// Store is the document store behind the reconciler, the calendar
// mirror and the ingestion pipeline. Implementations must keep the
// external-id uniqueness invariant on tasks.
type Store interface {
	// Tasks.
	ListTasks(ctx context.Context) ([]model.Task, error)
	TaskByExternalID(ctx context.Context, externalID string) (*model.Task, error)
	PutTask(ctx context.Context, t *model.Task) error
	DeleteTask(ctx context.Context, id string) error

	// Calendar mirror.
	ListCalendarEvents(ctx context.Context) ([]model.CalendarEvent, error)
	UpsertCalendarEvent(ctx context.Context, e model.CalendarEvent) error
	DeleteCalendarEvent(ctx context.Context, externalID string) error

	// Financial records (both directions).
	ListRecords(ctx context.Context) ([]model.FinancialRecord, error)
	AddRecord(ctx context.Context, r *model.FinancialRecord) error

	// Processed-message memo (singleton).
	Memo(ctx context.Context) (model.ProcessedMemo, error)
	PutMemo(ctx context.Context, m model.ProcessedMemo) error

	// Sync run status (singleton).
	SyncRun(ctx context.Context) (model.SyncRun, error)
	PutSyncRun(ctx context.Context, r model.SyncRun) error
	SetRunLogs(ctx context.Context, logs []string) error

	// ClaimRun atomically moves the run document to "processing" and
	// reports whether the claim succeeded. A run already in
	// "processing" refuses the claim; this is the single-run lease.
	ClaimRun(ctx context.Context) (bool, error)

	// Dynamic classifier rules. Empty result means "use configured
	// defaults".
	KeywordRules(ctx context.Context) ([]model.CategoryRule, error)
	PutKeywordRules(ctx context.Context, rules []model.CategoryRule) error

	Close() error
}
