package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"slackscribe/internal/daemon"
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
			sent, message, err := daemon.SendTestNotification(cmd.Context(), cfg)
			out := cmd.OutOrStdout()
			if err != nil {
				if message != "" {
					fmt.Fprintln(out, message)
				}
				return err
			}
			switch {
			case message != "":
				fmt.Fprintln(out, message)
			case sent:
				fmt.Fprintln(out, "Test notification sent")
			default:
				fmt.Fprintln(out, "Notification not sent")
			}
			return nil
		},
	}
}
