package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"vidmerge/internal/logging"
	"vidmerge/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var requestID string
	var runID string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the server log",
		Long: `Print the trailing lines of the server log. --request narrows output to the
lines logged for one X-Request-Id; --run narrows it to one staging run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := cfg.LogFile()
			if path == "" {
				return fmt.Errorf("paths.log_dir is not configured")
			}

			var filter logs.Filter
			switch {
			case requestID != "":
				filter = logs.MatchField(logging.FieldCorrelationID, requestID)
			case runID != "":
				filter = logs.MatchField(logging.FieldRunID, runID)
			}

			tail, offset, err := logs.Last(path, lines, filter)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, line := range tail {
				fmt.Fprintln(out, line)
			}
			if !follow {
				return nil
			}

			sigCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return logs.Follow(sigCtx, path, offset, logs.DefaultPoll, filter, func(line string) {
				fmt.Fprintln(out, line)
			})
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to print")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing lines as they are written")
	cmd.Flags().StringVar(&requestID, "request", "", "Only show lines for this request id")
	cmd.Flags().StringVar(&runID, "run", "", "Only show lines for this staging run")
	return cmd
}
