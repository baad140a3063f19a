package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"vidmerge/internal/api"
	"vidmerge/internal/artifact"
	"vidmerge/internal/config"
	"vidmerge/internal/encoder"
	"vidmerge/internal/ledger"
	"vidmerge/internal/logging"
	"vidmerge/internal/merge"
	"vidmerge/internal/notifications"
	"vidmerge/internal/preflight"
	"vidmerge/internal/staging"
	"vidmerge/internal/videos"
)

// serverLockName is the single-instance lock held in the log directory.
const serverLockName = "vidmerge.lock"

func newServeCommand(ctx *commandContext) *cobra.Command {
	var skipPreflight bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), ctx, skipPreflight)
		},
	}
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Start even when preflight checks fail")
	return cmd
}

func runServer(cmdCtx context.Context, ctx *commandContext, skipPreflight bool) error {
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := ctx.logger()
	if err != nil {
		return err
	}

	lock := flock.New(filepath.Join(cfg.Paths.LogDir, serverLockName))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire server lock: %w", err)
	}
	if !locked {
		return errors.New("another vidmerge server is already running")
	}
	defer lock.Unlock() //nolint:errcheck

	logging.PruneLogs(logger, cfg.Paths.LogDir, cfg.LogFile(), cfg.Logging.RetentionDays)
	sweep := staging.CleanStale(signalCtx, cfg.Paths.StagingDir, cfg.StaleAfter(), logger)
	if len(sweep.Removed) > 0 || len(sweep.Errors) > 0 {
		logger.Info("stale staging sweep finished",
			logging.String(logging.FieldEventType, "staging_sweep"),
			logging.Int("removed", len(sweep.Removed)),
			logging.Int("skipped", len(sweep.Skipped)),
			logging.Int("errors", len(sweep.Errors)),
		)
	}

	store, err := openStore(signalCtx, cfg, logger)
	if err != nil {
		return err
	}
	if !skipPreflight {
		if err := requirePreflight(signalCtx, cfg, store, logger); err != nil {
			return err
		}
	}

	history, err := ledger.OpenFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer history.Close()

	recorder := notifications.NewRecorder(history, notifications.NewService(cfg), logger)
	enc := encoder.NewFromConfig(cfg, logger)
	area := staging.NewArea(cfg.Paths.StagingDir, logger)
	orchestrator := merge.New(store, enc, area, merge.Options{
		MaxDuration: cfg.MaxDuration(),
		Recorder:    recorder,
	}, logger)
	server := api.New(videos.New(store, enc, area, logger), orchestrator, api.OptionsFromConfig(cfg), logger)

	listener, err := net.Listen("tcp", cfg.Server.Bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	serveErr := server.Serve(signalCtx, listener)
	orchestrator.Wait()
	recorder.Wait()
	logger.Info("vidmerge server shutting down", logging.String(logging.FieldEventType, "server_stopped"))
	return serveErr
}

func requirePreflight(ctx context.Context, cfg *config.Config, store artifact.Store, logger *slog.Logger) error {
	results := preflight.RunAll(ctx, cfg, store)
	failed := preflight.Failed(results)
	if len(failed) == 0 {
		return nil
	}
	names := make([]string, 0, len(failed))
	for _, r := range failed {
		names = append(names, r.Name)
		logging.ErrorWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldErrorHint, "run `vidmerge status` for the full report"),
		)
	}
	return fmt.Errorf("preflight failed: %s (run `vidmerge status`, or pass --skip-preflight)", strings.Join(names, ", "))
}
