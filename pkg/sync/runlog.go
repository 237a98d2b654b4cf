package sync

import (
	"context"
	"fmt"
	"log"
	gosync "sync"
	"time"

	"github.com/dmaraujo/hermes-sync/pkg/store"
)

// defaultFlushEvery throttles run-log writes to the store so a chatty
// stage does not turn every log line into a document write.
const defaultFlushEvery = 1200 * time.Millisecond

// RunLog collects timestamped log lines for the current run, echoing
// them to stderr and flushing them to the run document at a bounded
// rate. Completion and error paths persist the full set via the
// orchestrator regardless of the throttle.
type RunLog struct {
	store      store.Store
	clock      Clock
	flushEvery time.Duration

	mu        gosync.Mutex
	lines     []string
	lastFlush time.Time
}

// NewRunLog builds a run log flushing at the default rate.
func NewRunLog(st store.Store, clock Clock) *RunLog {
	return &RunLog{store: st, clock: clock, flushEvery: defaultFlushEvery}
}

// Logf records one line.
func (l *RunLog) Logf(format string, args ...any) {
	now := l.clock.Now()
	line := fmt.Sprintf("[%s] %s", now.Format("15:04:05"), fmt.Sprintf(format, args...))
	log.Print(line)

	l.mu.Lock()
	l.lines = append(l.lines, line)
	flush := now.Sub(l.lastFlush) >= l.flushEvery
	var snapshot []string
	if flush {
		l.lastFlush = now
		snapshot = append([]string(nil), l.lines...)
	}
	l.mu.Unlock()

	if flush {
		if err := l.store.SetRunLogs(context.Background(), snapshot); err != nil {
			log.Printf("Warning: could not flush run logs: %v", err)
		}
	}
}

// Flush persists all collected lines immediately.
func (l *RunLog) Flush(ctx context.Context) error {
	l.mu.Lock()
	snapshot := append([]string(nil), l.lines...)
	l.lastFlush = l.clock.Now()
	l.mu.Unlock()
	return l.store.SetRunLogs(ctx, snapshot)
}

// Lines returns a copy of everything logged since the last Reset.
func (l *RunLog) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

// Reset starts a fresh run.
func (l *RunLog) Reset() {
	l.mu.Lock()
	l.lines = nil
	l.lastFlush = time.Time{}
	l.mu.Unlock()
}
