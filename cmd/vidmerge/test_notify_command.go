package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"vidmerge/internal/notifications"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			svc := notifications.NewService(cfg)
			if !svc.Enabled() {
				return errors.New("notifications disabled: set notifications.ntfy_topic")
			}
			if err := svc.Test(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
			return nil
		},
	}
}
