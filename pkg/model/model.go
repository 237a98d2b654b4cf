package model

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned by adapters when the remote side reports that a
// resource does not exist. Callers treat it as a benign, recoverable
// condition (e.g. a delete of something already gone).
var ErrNotFound = errors.New("not found")

// Task status values.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
	StatusDeleted    = "deleted"
)

// Task origin values.
const (
	OriginLocal  = "local"
	OriginRemote = "remote"
)

// SystemCategory marks tasks that belong to the system itself and must
// never be pushed to the remote task list. Categories may also use the
// "SYSTEM:" prefix form.
const (
	SystemCategory       = "SYSTEM"
	SystemCategoryPrefix = "SYSTEM:"
)

// Task is a locally stored task. ExternalID links it to its remote
// counterpart; at most one task may hold a given non-empty ExternalID.
type Task struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Project          string    `json:"project,omitempty"`
	ExternalID       string    `json:"external_id,omitempty"`
	Status           string    `json:"status"`
	DueDate          string    `json:"due_date,omitempty"`    // YYYY-MM-DD
	StartTime        string    `json:"start_time,omitempty"`  // HH:MM
	EndTime          string    `json:"end_time,omitempty"`    // HH:MM
	Notes            string    `json:"notes,omitempty"`
	Category         string    `json:"category,omitempty"`
	CountsTowardGoal bool      `json:"counts_toward_goal"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	CompletedAt      string    `json:"completed_at,omitempty"` // RFC3339, as reported remotely
	Origin           string    `json:"origin,omitempty"`
}

// IsSystem reports whether the task is internal and excluded from PUSH.
func (t *Task) IsSystem() bool {
	return t.Category == SystemCategory || strings.HasPrefix(t.Category, SystemCategoryPrefix)
}

// RemoteTask is a task as the remote task service reports it. It is read
// through the task adapter only and never stored directly.
type RemoteTask struct {
	ID        string
	Title     string
	Notes     string
	Status    string // needsAction | completed
	Due       string // RFC3339
	Completed string // RFC3339
	Updated   time.Time
}

// TaskList identifies one remote task list.
type TaskList struct {
	ID    string
	Title string
}

// CalendarEvent mirrors one remote calendar event. It has no independent
// lifecycle: the mirror sweep overwrites and prunes these wholesale.
// Start and End keep the remote representation (RFC3339 date-time or a
// bare date for all-day events).
type CalendarEvent struct {
	ExternalID string    `json:"external_id"`
	Title      string    `json:"title"`
	Start      string    `json:"start"`
	End        string    `json:"end"`
	LastSync   time.Time `json:"last_sync"`
}

// StartAt parses the event start instant. All-day events resolve to
// midnight UTC of their date.
func (e *CalendarEvent) StartAt() (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, e.Start); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", e.Start); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// Financial record kinds.
const (
	KindExpense = "expense"
	KindIncome  = "income"
)

// FinancialRecord is one ingested transfer. Written once by the
// ingestion pipeline and never updated by it.
type FinancialRecord struct {
	ID                string          `json:"id"`
	Kind              string          `json:"kind"`
	Description       string          `json:"description"`
	Amount            decimal.Decimal `json:"amount"`
	Date              time.Time       `json:"date"`
	Sprint            int             `json:"sprint,omitempty"` // period bucket from day of month
	Category          string          `json:"category"`
	Status            string          `json:"status"`
	ExternalMessageID string          `json:"external_message_id,omitempty"`
	TransferID        string          `json:"transfer_id,omitempty"`
}

// ProcessedMemo is the bounded set of mail message ids the ingestion
// pipeline has already evaluated, regardless of outcome.
type ProcessedMemo struct {
	IDs []string `json:"ids"`
}

// MemoCap bounds the processed-message memo.
const MemoCap = 200

// Contains reports whether id is in the memo.
func (m *ProcessedMemo) Contains(id string) bool {
	for _, v := range m.IDs {
		if v == id {
			return true
		}
	}
	return false
}

// Add appends id if absent and trims the memo to MemoCap, dropping the
// oldest entries first.
func (m *ProcessedMemo) Add(id string) {
	if m.Contains(id) {
		return
	}
	m.IDs = append(m.IDs, id)
	if n := len(m.IDs); n > MemoCap {
		m.IDs = m.IDs[n-MemoCap:]
	}
}

// Sync run states.
const (
	RunIdle       = "idle"
	RunRequested  = "requested"
	RunProcessing = "processing"
	RunCompleted  = "completed"
	RunError      = "error"
)

// SyncRun is the singleton run status document. Overwritten every run;
// its Logs are the only user-visible failure channel.
type SyncRun struct {
	Status       string    `json:"status"`
	Logs         []string  `json:"logs,omitempty"`
	LastSuccess  time.Time `json:"last_success,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// CategoryRule is one ordered classifier rule. Rules are a slice, not a
// map, so the first match is deterministic.
type CategoryRule struct {
	Name             string   `json:"name" yaml:"name"`
	CountsTowardGoal bool     `json:"counts_toward_goal" yaml:"counts_toward_goal"`
	Keywords         []string `json:"keywords" yaml:"keywords"`
}

// MessageRef identifies one mail message in a search result.
type MessageRef struct {
	ID string
}

// Message is a fetched mail message. Received is the server-assigned
// delivery instant, never a client-supplied header.
type Message struct {
	ID       string
	Subject  string
	Snippet  string
	Received time.Time
}
