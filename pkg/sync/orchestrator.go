package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/dmaraujo/hermes-sync/pkg/config"
	"github.com/dmaraujo/hermes-sync/pkg/model"
	"github.com/dmaraujo/hermes-sync/pkg/store"
)

// ErrRunInProgress means another trigger holds the run lease.
var ErrRunInProgress = errors.New("sync run already in progress")

// Ingestor is the transaction ingestion stage as the orchestrator sees
// it.
type Ingestor interface {
	Run(ctx context.Context) error
}

// Orchestrator sequences a full synchronization cycle: PUSH, PULL,
// calendar mirror, ingestion. PUSH precedes PULL so local deletions and
// creations take effect before fresh remote state is imported.
type Orchestrator struct {
	store  store.Store
	syncer *Syncer
	ingest Ingestor
	cfg    *config.Config
	clock  Clock
	log    *RunLog
}

// NewOrchestrator wires a full-sync runner.
func NewOrchestrator(st store.Store, syncer *Syncer, ingest Ingestor, cfg *config.Config, clock Clock, log *RunLog) *Orchestrator {
	return &Orchestrator{store: st, syncer: syncer, ingest: ingest, cfg: cfg, clock: clock, log: log}
}

// RunFull executes one synchronization cycle under the run lease.
//
// Stage-internal failures are logged to the run document and do not
// stop the remaining stages; only store unavailability or a failure
// outside all stage boundaries flips the run to "error".
func (o *Orchestrator) RunFull(ctx context.Context) (err error) {
	claimed, cerr := o.store.ClaimRun(ctx)
	if cerr != nil {
		return cerr
	}
	if !claimed {
		return ErrRunInProgress
	}

	o.log.Reset()
	o.log.Logf("Starting synchronization...")

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sync panic: %v", r)
		}
		o.finish(err)
	}()

	stages := []struct {
		name string
		run  func(context.Context) error
	}{
		{"PUSH", o.syncer.Push},
		{"PULL", o.syncer.Pull},
		{"CALENDAR", o.syncer.MirrorCalendar},
		{"INGEST", o.ingest.Run},
	}
	for _, stage := range stages {
		if serr := stage.run(ctx); serr != nil {
			if store.IsUnavailable(serr) {
				return serr
			}
			o.log.Logf("ERROR %s: %v", stage.name, serr)
		}
	}
	return nil
}

// finish overwrites the run document with the cycle's outcome. It uses
// a background context: the result must land even when the run's own
// context was what failed.
func (o *Orchestrator) finish(runErr error) {
	ctx := context.Background()
	run, err := o.store.SyncRun(ctx)
	if err != nil {
		log.Printf("ERROR: could not load run status to finish: %v", err)
		run = model.SyncRun{}
	}

	if runErr != nil {
		o.log.Logf("FATAL: %v", runErr)
		run.Status = model.RunError
		run.ErrorMessage = runErr.Error()
	} else {
		run.Status = model.RunCompleted
		run.ErrorMessage = ""
		run.LastSuccess = o.clock.Now()
	}
	run.Logs = o.log.Lines()

	if err := o.store.PutSyncRun(ctx, run); err != nil {
		log.Printf("ERROR: could not persist run status: %v", err)
	}
}

// Watch blocks, running a full sync whenever the run document is set to
// "requested" and on the fixed schedule. Returns when ctx is done.
func (o *Orchestrator) Watch(ctx context.Context) error {
	poll := time.NewTicker(o.cfg.PollInterval)
	defer poll.Stop()
	schedule := time.NewTicker(o.cfg.SyncInterval)
	defer schedule.Stop()

	log.Printf("Watching for sync requests (poll %s, scheduled sync every %s)",
		o.cfg.PollInterval, o.cfg.SyncInterval)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-poll.C:
			run, err := o.store.SyncRun(ctx)
			if err != nil {
				log.Printf("Warning: could not read run status: %v", err)
				continue
			}
			if run.Status == model.RunRequested {
				o.runLogged(ctx)
			}
		case <-schedule.C:
			o.runLogged(ctx)
		}
	}
}

func (o *Orchestrator) runLogged(ctx context.Context) {
	if err := o.RunFull(ctx); err != nil && !errors.Is(err, ErrRunInProgress) {
		log.Printf("sync run failed: %v", err)
	}
}
