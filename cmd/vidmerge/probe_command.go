package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vidmerge/internal/config"
	"vidmerge/internal/encoder"
	"vidmerge/internal/logging"
	"vidmerge/internal/media/metadata"
)

func newProbeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "probe FILE",
		Short: "Print the metadata headers a download of FILE would carry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			enc := encoder.NewFromConfig(cfg, logging.NewNop())
			result, err := enc.Inspect(cmd.Context(), path)
			if err != nil {
				return fmt.Errorf("probe %s: %w", path, err)
			}
			return printMetadata(cmd, ctx.JSONMode(), metadata.FromProbe(result))
		},
	}
}

func printMetadata(cmd *cobra.Command, jsonMode bool, md metadata.Metadata) error {
	if jsonMode {
		return writeJSON(cmd, md)
	}
	out := cmd.OutOrStdout()
	if len(md) == 0 {
		fmt.Fprintln(out, "No metadata reported")
		return nil
	}
	names := md.Names()
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, []string{name, md[name]})
	}
	fmt.Fprint(out, renderTable([]string{"Header", "Value"}, rows, nil))
	return nil
}
