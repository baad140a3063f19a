package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vidmerge/internal/artifact"
	"vidmerge/internal/ledger"
	"vidmerge/internal/logging"
	"vidmerge/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report preflight checks and merge counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			var store artifact.Store
			if !offline {
				store, err = openStore(cmd.Context(), cfg, logging.NewNop())
				if err != nil {
					return err
				}
			}
			results := preflight.RunAll(cmd.Context(), cfg, store)

			history, err := ledger.OpenFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("open ledger: %w", err)
			}
			counts, err := history.Counts(cmd.Context())
			history.Close()
			if err != nil {
				return fmt.Errorf("read ledger: %w", err)
			}

			if ctx.JSONMode() {
				return writeJSON(cmd, map[string]any{
					"checks": results,
					"merges": counts,
					"ready":  len(preflight.Failed(results)) == 0,
				})
			}

			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				state := "ok"
				if !r.Passed {
					state = "FAIL"
				}
				rows = append(rows, []string{r.Name, state, r.Detail})
			}
			fmt.Fprint(out, renderTable([]string{"Check", "Status", "Detail"}, rows, nil))
			fmt.Fprintf(out, "\nMerges: %d published, %d rejected, %d failed\n",
				counts[ledger.OutcomePublished], counts[ledger.OutcomeRejected], counts[ledger.OutcomeFailed])
			if failed := preflight.Failed(results); len(failed) > 0 {
				fmt.Fprintf(out, "%d checks failed; serve will refuse to start\n", len(failed))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip the store reachability check")
	return cmd
}
