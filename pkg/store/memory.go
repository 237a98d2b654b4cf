package store

import (
	"context"
	"sort"
	"sync"

	"github.com/dmaraujo/hermes-sync/pkg/model"
)

// Memory is an in-memory Store used by tests and by the CLI in dry
// scenarios. Safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	tasks   map[string]model.Task
	byExt   map[string]string // external id -> task id
	events  map[string]model.CalendarEvent
	records []model.FinancialRecord
	memo    model.ProcessedMemo
	run     model.SyncRun
	rules   []model.CategoryRule
}

// NewMemory returns an empty in-memory store with the run document idle.
func NewMemory() *Memory {
	return &Memory{
		tasks:  make(map[string]model.Task),
		byExt:  make(map[string]string),
		events: make(map[string]model.CalendarEvent),
		run:    model.SyncRun{Status: model.RunIdle},
	}
}

func (s *Memory) ListTasks(ctx context.Context) ([]model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Memory) TaskByExternalID(ctx context.Context, externalID string) (*model.Task, error) {
	if externalID == "" {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byExt[externalID]
	if !ok {
		return nil, nil
	}
	t := s.tasks[id]
	return &t, nil
}

func (s *Memory) PutTask(ctx context.Context, t *model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ExternalID != "" {
		if other, ok := s.byExt[t.ExternalID]; ok && other != t.ID {
			return ErrDuplicateExternalID
		}
	}
	if old, ok := s.tasks[t.ID]; ok && old.ExternalID != "" && old.ExternalID != t.ExternalID {
		delete(s.byExt, old.ExternalID)
	}
	s.tasks[t.ID] = *t
	if t.ExternalID != "" {
		s.byExt[t.ExternalID] = t.ID
	}
	return nil
}

func (s *Memory) DeleteTask(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[id]; ok && t.ExternalID != "" {
		delete(s.byExt, t.ExternalID)
	}
	delete(s.tasks, id)
	return nil
}

func (s *Memory) ListCalendarEvents(ctx context.Context) ([]model.CalendarEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.CalendarEvent, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalID < out[j].ExternalID })
	return out, nil
}

func (s *Memory) UpsertCalendarEvent(ctx context.Context, e model.CalendarEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.ExternalID] = e
	return nil
}

func (s *Memory) DeleteCalendarEvent(ctx context.Context, externalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.events, externalID)
	return nil
}

func (s *Memory) ListRecords(ctx context.Context) ([]model.FinancialRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.FinancialRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}

func (s *Memory) AddRecord(ctx context.Context, r *model.FinancialRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, *r)
	return nil
}

func (s *Memory) Memo(ctx context.Context) (model.ProcessedMemo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := model.ProcessedMemo{IDs: make([]string, len(s.memo.IDs))}
	copy(m.IDs, s.memo.IDs)
	return m, nil
}

func (s *Memory) PutMemo(ctx context.Context, m model.ProcessedMemo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memo = model.ProcessedMemo{IDs: make([]string, len(m.IDs))}
	copy(s.memo.IDs, m.IDs)
	return nil
}

func (s *Memory) SyncRun(ctx context.Context) (model.SyncRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run, nil
}

func (s *Memory) PutSyncRun(ctx context.Context, r model.SyncRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run = r
	return nil
}

func (s *Memory) SetRunLogs(ctx context.Context, logs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run.Logs = append([]string(nil), logs...)
	return nil
}

func (s *Memory) ClaimRun(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run.Status == model.RunProcessing {
		return false, nil
	}
	s.run.Status = model.RunProcessing
	return true, nil
}

func (s *Memory) KeywordRules(ctx context.Context) ([]model.CategoryRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.CategoryRule(nil), s.rules...), nil
}

func (s *Memory) PutKeywordRules(ctx context.Context, rules []model.CategoryRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append([]model.CategoryRule(nil), rules...)
	return nil
}

func (s *Memory) Close() error { return nil }
