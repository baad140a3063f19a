package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"vidmerge/internal/ledger"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var pruneDays int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent merge outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			history, err := ledger.OpenFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("open ledger: %w", err)
			}
			defer history.Close()

			if pruneDays > 0 {
				removed, err := history.Prune(cmd.Context(), time.Now().AddDate(0, 0, -pruneDays))
				if err != nil {
					return fmt.Errorf("prune ledger: %w", err)
				}
				if !ctx.JSONMode() {
					fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d entries older than %d days\n", removed, pruneDays)
				}
			}

			entries, err := history.Recent(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("read ledger: %w", err)
			}
			if ctx.JSONMode() {
				if entries == nil {
					entries = []ledger.Entry{}
				}
				return writeJSON(cmd, entries)
			}
			return printHistory(cmd, entries)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries to show (0 for all)")
	cmd.Flags().IntVar(&pruneDays, "prune-days", 0, "Delete entries older than this many days first")
	return cmd
}

func printHistory(cmd *cobra.Command, entries []ledger.Entry) error {
	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No merges recorded")
		return nil
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		sources := make([]string, 0, len(e.Sources))
		for _, id := range e.Sources {
			sources = append(sources, shortID(id))
		}
		detail := shortID(e.ResultID)
		if e.Outcome != ledger.OutcomePublished {
			detail = e.ErrorKind
		}
		size := ""
		if e.SizeBytes > 0 {
			size = formatBytes(e.SizeBytes)
		}
		rows = append(rows, []string{
			e.StartedAt.Local().Format("2006-01-02 15:04:05"),
			string(e.Outcome),
			strings.Join(sources, " + "),
			detail,
			size,
			e.Duration().Round(time.Millisecond).String(),
		})
	}
	fmt.Fprint(out, renderTable(
		[]string{"Started", "Outcome", "Sources", "Result", "Size", "Took"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
	))
	return nil
}
