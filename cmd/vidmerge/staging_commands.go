package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"vidmerge/internal/staging"
)

func newStagingCommand(ctx *commandContext) *cobra.Command {
	stagingCmd := &cobra.Command{
		Use:   "staging",
		Short: "Manage staging directories",
	}

	stagingCmd.AddCommand(newStagingListCommand(ctx))
	stagingCmd.AddCommand(newStagingCleanCommand(ctx))

	return stagingCmd
}

func newStagingListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List staging run directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			stagingDir := strings.TrimSpace(cfg.Paths.StagingDir)
			dirs, err := staging.ListDirectories(stagingDir)
			if err != nil {
				return fmt.Errorf("list staging directories: %w", err)
			}

			var totalSize int64
			for _, dir := range dirs {
				totalSize += dir.Size
			}
			if ctx.JSONMode() {
				if dirs == nil {
					dirs = []staging.DirInfo{}
				}
				return writeJSON(cmd, map[string]any{
					"staging_dir":      stagingDir,
					"directories":      dirs,
					"total_size_bytes": totalSize,
				})
			}

			out := cmd.OutOrStdout()
			if len(dirs) == 0 {
				fmt.Fprintln(out, "No staging directories found")
				return nil
			}
			fmt.Fprintf(out, "Staging directory: %s\n\n", stagingDir)

			rows := make([][]string, 0, len(dirs))
			for _, dir := range dirs {
				age := time.Since(dir.ModTime).Truncate(time.Second)
				rows = append(rows, []string{dir.Name, yesNo(dir.Live), formatDuration(age), formatBytes(dir.Size)})
			}
			fmt.Fprint(out, renderTable(
				[]string{"Run", "Live", "Age", "Size"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
			))
			fmt.Fprintf(out, "\nTotal: %d directories, %s\n", len(dirs), formatBytes(totalSize))
			return nil
		},
	}
}

func newStagingCleanCommand(ctx *commandContext) *cobra.Command {
	var cleanAll bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove stale staging directories",
		Long: `Remove staging run directories left behind by crashed or interrupted runs.

By default, only removes directories older than staging.stale_after_hours.
Use --all to remove every directory regardless of age. Directories whose run
lock is held by a live process are always skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			maxAge := cfg.StaleAfter()
			label := "stale staging"
			if cleanAll {
				maxAge = 0
				label = "staging"
			}
			result := staging.CleanStale(cmd.Context(), cfg.Paths.StagingDir, maxAge, nil)
			if ctx.JSONMode() {
				return writeStagingCleanJSON(cmd, result)
			}
			return printStagingCleanResult(cmd, result, label)
		},
	}

	cmd.Flags().BoolVar(&cleanAll, "all", false, "Remove all unlocked staging directories regardless of age")

	return cmd
}

func printStagingCleanResult(cmd *cobra.Command, result staging.CleanStaleResult, label string) error {
	out := cmd.OutOrStdout()
	if len(result.Skipped) > 0 {
		fmt.Fprintf(out, "Skipped %d live directories\n", len(result.Skipped))
	}
	if len(result.Removed) == 0 && len(result.Errors) == 0 {
		fmt.Fprintf(out, "No %s directories to clean\n", label)
		return nil
	}
	if len(result.Errors) > 0 {
		fmt.Fprintf(out, "Removed %d %s directories, %d errors\n", len(result.Removed), label, len(result.Errors))
		for _, e := range result.Errors {
			fmt.Fprintf(out, "  Error: %s: %v\n", e.Path, e.Error)
		}
		return nil
	}
	fmt.Fprintf(out, "Removed %d %s directories\n", len(result.Removed), label)
	return nil
}

func writeStagingCleanJSON(cmd *cobra.Command, result staging.CleanStaleResult) error {
	errs := make([]string, 0, len(result.Errors))
	for _, e := range result.Errors {
		errs = append(errs, fmt.Sprintf("%s: %v", e.Path, e.Error))
	}
	return writeJSON(cmd, map[string]any{
		"removed": len(result.Removed),
		"skipped": len(result.Skipped),
		"errors":  errs,
	})
}
