package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dmaraujo/hermes-sync/pkg/auth"
	"github.com/dmaraujo/hermes-sync/pkg/config"
	"github.com/dmaraujo/hermes-sync/pkg/google"
	"github.com/dmaraujo/hermes-sync/pkg/ingest"
	"github.com/dmaraujo/hermes-sync/pkg/store"
	"github.com/dmaraujo/hermes-sync/pkg/sync"
)

// runtime bundles everything a command needs once config, store and the
// Google adapters are wired.
type runtime struct {
	cfg    *config.Config
	store  store.Store
	log    *sync.RunLog
	syncer *sync.Syncer
	ingest *ingest.Pipeline
	orch   *sync.Orchestrator
}

func buildRuntime(ctx context.Context, configPath string) (*runtime, error) {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("could not load config: %w", err)
	}

	dbPath, err := cfg.DefaultStorePath()
	if err != nil {
		return nil, err
	}
	st, err := store.OpenSQLite(dbPath)
	if err != nil {
		return nil, err
	}

	services, err := google.NewServices(ctx)
	if err != nil {
		st.Close()
		return nil, err
	}

	clock := sync.RealClock{}
	runLog := sync.NewRunLog(st, clock)
	syncer := sync.NewSyncer(st, services.Tasks, services.Calendar, cfg, clock, runLog)
	pipeline := ingest.New(st, services.Mail, cfg, runLog)
	orch := sync.NewOrchestrator(st, syncer, pipeline, cfg, clock, runLog)

	return &runtime{cfg: cfg, store: st, log: runLog, syncer: syncer, ingest: pipeline, orch: orch}, nil
}

func (r *runtime) close() {
	if err := r.store.Close(); err != nil {
		log.Printf("Warning: closing store: %v", err)
	}
}

// stageCommand runs one reconciliation stage on its own, flushing the
// collected log lines to the run document when it is done.
func stageCommand(configPath *string, run func(context.Context, *runtime) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := buildRuntime(ctx, *configPath)
		if err != nil {
			return err
		}
		defer rt.close()

		stageErr := run(ctx, rt)
		if err := rt.log.Flush(ctx); err != nil {
			log.Printf("Warning: could not flush run logs: %v", err)
		}
		return stageErr
	}
}

func main() {
	var configPath string

	root := &cobra.Command{
		Use:           "hermes-sync",
		Short:         "Bidirectional task reconciliation and transfer ingestion",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.yaml (default: ~/.config/hermes-sync/config.yaml)")

	root.AddCommand(&cobra.Command{
		Use:   "auth",
		Short: "Authenticate with Google and cache the token",
		RunE: func(cmd *cobra.Command, args []string) error {
			xdgConfigBase, err := auth.GetXdgHome()
			if err != nil {
				return fmt.Errorf("could not find path to configuration file: %w", err)
			}

			// Drop a stale token so the flow runs from scratch.
			tokenFile := filepath.Join(xdgConfigBase, auth.TokenFile)
			if _, err := os.Stat(tokenFile); err == nil {
				log.Printf("Removing existing token file at '%s'", tokenFile)
				if err := os.Remove(tokenFile); err != nil {
					return fmt.Errorf("could not delete token file '%s': %w. Please delete it manually", tokenFile, err)
				}
			}

			if _, err := auth.GetClient(cmd.Context(), auth.Scopes); err != nil {
				return fmt.Errorf("authentication failed: %w", err)
			}
			log.Printf("Authentication successful! Token saved to %s", tokenFile)
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "pull",
		Short: "Import remote task state into the local store",
		RunE: stageCommand(&configPath, func(ctx context.Context, rt *runtime) error {
			return rt.syncer.Pull(ctx)
		}),
	})

	root.AddCommand(&cobra.Command{
		Use:   "push",
		Short: "Export local task state to the remote list",
		RunE: stageCommand(&configPath, func(ctx context.Context, rt *runtime) error {
			return rt.syncer.Push(ctx)
		}),
	})

	root.AddCommand(&cobra.Command{
		Use:   "ingest",
		Short: "Scan mail and record new transfers",
		RunE: stageCommand(&configPath, func(ctx context.Context, rt *runtime) error {
			return rt.ingest.Run(ctx)
		}),
	})

	root.AddCommand(&cobra.Command{
		Use:   "sync",
		Short: "Run one full cycle: push, pull, calendar mirror, ingestion",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer rt.close()
			return rt.orch.RunFull(cmd.Context())
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "watch",
		Short: "Block, syncing on request and on the fixed schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer rt.close()
			return rt.orch.Watch(cmd.Context())
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
