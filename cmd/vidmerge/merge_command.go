package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vidmerge/internal/encoder"
	"vidmerge/internal/ledger"
	"vidmerge/internal/merge"
	"vidmerge/internal/notifications"
	"vidmerge/internal/services"
	"vidmerge/internal/staging"
)

func newMergeCommand(ctx *commandContext) *cobra.Command {
	var noRecord bool

	cmd := &cobra.Command{
		Use:   "merge ID1 ID2",
		Short: "Merge two uploaded videos without the HTTP server",
		Long: `Run the merge pipeline once: truncate both videos, concatenate them with
ID1 playing first, overlay the watermark and publish the result under a new id
in the merged tier. The new id is printed on success.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			store, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}

			var history notifications.EntryRecorder
			if !noRecord {
				db, err := ledger.OpenFromConfig(cfg)
				if err != nil {
					return fmt.Errorf("open ledger: %w", err)
				}
				defer db.Close()
				history = db
			}
			recorder := notifications.NewRecorder(history, notifications.NewService(cfg), logger)
			defer recorder.Wait()
			opts := merge.Options{MaxDuration: cfg.MaxDuration(), Recorder: recorder}

			area := staging.NewArea(cfg.Paths.StagingDir, logger)
			orchestrator := merge.New(store, encoder.NewFromConfig(cfg, logger), area, opts, logger)
			result, err := orchestrator.Merge(cmd.Context(), merge.Request{IDs: args})
			orchestrator.Wait()
			if err != nil {
				if services.KindOf(err).ClientError() {
					return fmt.Errorf("merge rejected: %s", services.Reason(err))
				}
				return fmt.Errorf("merge failed: %w", err)
			}

			if ctx.JSONMode() {
				return writeJSON(cmd, map[string]any{
					"id":         result.ID,
					"sources":    result.Sources,
					"run_id":     result.RunID,
					"size_bytes": result.SizeBytes,
					"blake3":     result.BLAKE3,
					"elapsed_ms": result.Elapsed.Milliseconds(),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.ID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&noRecord, "no-record", false, "Do not write the outcome to the merge ledger")
	return cmd
}
