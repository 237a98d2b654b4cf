package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/dmaraujo/hermes-sync/pkg/model"
)

// SQLite persists documents as JSON rows in a local database file. The
// schema mirrors the store collections: one table per collection plus a
// singleton table for the memo, run status and dynamic keyword rules.
type SQLite struct {
	db *sql.DB
}

const (
	docMemo  = "processed_messages"
	docRun   = "sync"
	docRules = "keyword_rules"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		external_id TEXT NOT NULL DEFAULT '',
		data TEXT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS tasks_external_id
		ON tasks(external_id) WHERE external_id != ''`,
	`CREATE TABLE IF NOT EXISTS calendar_events (
		external_id TEXT PRIMARY KEY,
		data TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS finance_records (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		data TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS system_docs (
		name TEXT PRIMARY KEY,
		data TEXT NOT NULL
	)`,
}

// OpenSQLite opens (and if needed creates) the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 30000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: schema: %v", ErrUnavailable, err)
		}
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}

func (s *SQLite) ListTasks(ctx context.Context) ([]model.Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM tasks ORDER BY id`)
	if err != nil {
		return nil, storeErr("list tasks", err)
	}
	defer rows.Close()

	var out []model.Task
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, storeErr("scan task", err)
		}
		var t model.Task
		if err := json.Unmarshal([]byte(data), &t); err != nil {
			return nil, storeErr("decode task", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLite) TaskByExternalID(ctx context.Context, externalID string) (*model.Task, error) {
	if externalID == "" {
		return nil, nil
	}
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM tasks WHERE external_id = ?`, externalID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("task by external id", err)
	}
	var t model.Task
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return nil, storeErr("decode task", err)
	}
	return &t, nil
}

func (s *SQLite) PutTask(ctx context.Context, t *model.Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return storeErr("encode task", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, external_id, data) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET external_id = excluded.external_id, data = excluded.data`,
		t.ID, t.ExternalID, string(data))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateExternalID
		}
		return storeErr("put task", err)
	}
	return nil
}

func (s *SQLite) DeleteTask(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return storeErr("delete task", err)
	}
	return nil
}

func (s *SQLite) ListCalendarEvents(ctx context.Context) ([]model.CalendarEvent, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM calendar_events ORDER BY external_id`)
	if err != nil {
		return nil, storeErr("list calendar events", err)
	}
	defer rows.Close()

	var out []model.CalendarEvent
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, storeErr("scan calendar event", err)
		}
		var e model.CalendarEvent
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			return nil, storeErr("decode calendar event", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLite) UpsertCalendarEvent(ctx context.Context, e model.CalendarEvent) error {
	data, err := json.Marshal(e)
	if err != nil {
		return storeErr("encode calendar event", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO calendar_events (external_id, data) VALUES (?, ?)
		ON CONFLICT(external_id) DO UPDATE SET data = excluded.data`,
		e.ExternalID, string(data))
	if err != nil {
		return storeErr("upsert calendar event", err)
	}
	return nil
}

func (s *SQLite) DeleteCalendarEvent(ctx context.Context, externalID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM calendar_events WHERE external_id = ?`, externalID); err != nil {
		return storeErr("delete calendar event", err)
	}
	return nil
}

func (s *SQLite) ListRecords(ctx context.Context) ([]model.FinancialRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM finance_records ORDER BY id`)
	if err != nil {
		return nil, storeErr("list records", err)
	}
	defer rows.Close()

	var out []model.FinancialRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, storeErr("scan record", err)
		}
		var r model.FinancialRecord
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, storeErr("decode record", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLite) AddRecord(ctx context.Context, r *model.FinancialRecord) error {
	data, err := json.Marshal(r)
	if err != nil {
		return storeErr("encode record", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO finance_records (id, kind, data) VALUES (?, ?, ?)`,
		r.ID, r.Kind, string(data))
	if err != nil {
		return storeErr("add record", err)
	}
	return nil
}

func (s *SQLite) Memo(ctx context.Context) (model.ProcessedMemo, error) {
	var m model.ProcessedMemo
	if err := s.getDoc(ctx, docMemo, &m); err != nil {
		return model.ProcessedMemo{}, err
	}
	return m, nil
}

func (s *SQLite) PutMemo(ctx context.Context, m model.ProcessedMemo) error {
	return s.putDoc(ctx, docMemo, m)
}

func (s *SQLite) SyncRun(ctx context.Context) (model.SyncRun, error) {
	r := model.SyncRun{Status: model.RunIdle}
	if err := s.getDoc(ctx, docRun, &r); err != nil {
		return model.SyncRun{}, err
	}
	if r.Status == "" {
		r.Status = model.RunIdle
	}
	return r, nil
}

func (s *SQLite) PutSyncRun(ctx context.Context, r model.SyncRun) error {
	return s.putDoc(ctx, docRun, r)
}

func (s *SQLite) SetRunLogs(ctx context.Context, logs []string) error {
	r, err := s.SyncRun(ctx)
	if err != nil {
		return err
	}
	r.Logs = logs
	return s.PutSyncRun(ctx, r)
}

func (s *SQLite) ClaimRun(ctx context.Context) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, storeErr("claim run", err)
	}
	defer tx.Rollback()

	r := model.SyncRun{Status: model.RunIdle}
	var data string
	err = tx.QueryRowContext(ctx,
		`SELECT data FROM system_docs WHERE name = ?`, docRun).Scan(&data)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// First run ever; claimable.
	case err != nil:
		return false, storeErr("claim run", err)
	default:
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return false, storeErr("claim run", err)
		}
	}
	if r.Status == model.RunProcessing {
		return false, nil
	}
	r.Status = model.RunProcessing
	encoded, err := json.Marshal(r)
	if err != nil {
		return false, storeErr("claim run", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO system_docs (name, data) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET data = excluded.data`,
		docRun, string(encoded)); err != nil {
		return false, storeErr("claim run", err)
	}
	if err := tx.Commit(); err != nil {
		return false, storeErr("claim run", err)
	}
	return true, nil
}

func (s *SQLite) KeywordRules(ctx context.Context) ([]model.CategoryRule, error) {
	var rules []model.CategoryRule
	if err := s.getDoc(ctx, docRules, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

func (s *SQLite) PutKeywordRules(ctx context.Context, rules []model.CategoryRule) error {
	return s.putDoc(ctx, docRules, rules)
}

func (s *SQLite) getDoc(ctx context.Context, name string, v any) error {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM system_docs WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return storeErr("get "+name, err)
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return storeErr("decode "+name, err)
	}
	return nil
}

func (s *SQLite) putDoc(ctx context.Context, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return storeErr("encode "+name, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO system_docs (name, data) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET data = excluded.data`,
		name, string(data))
	if err != nil {
		return storeErr("put "+name, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	// modernc.org/sqlite surfaces constraint failures in the error text.
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}
