package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := ctx.apiAddr()
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			status, err := newAPIClient(addr).status(cmd.Context())
			if err != nil {
				for _, line := range renderSectionHeader("Daemon", colorize) {
					fmt.Fprintln(stdout, line)
				}
				fmt.Fprintln(stdout, renderStatusLine("Running", statusWarn, fmt.Sprintf("not reachable at %s", addr), colorize))
				return nil
			}

			for _, line := range renderSectionHeader("Daemon", colorize) {
				fmt.Fprintln(stdout, line)
			}
			runningKind := statusWarn
			runningDetail := "stopped"
			if status.Running {
				runningKind = statusOK
				runningDetail = fmt.Sprintf("pid %d", status.PID)
			}
			fmt.Fprintln(stdout, renderStatusLine("Running", runningKind, runningDetail, colorize))
			fmt.Fprintln(stdout, renderStatusLine("Library", statusInfo, status.LibraryDir, colorize))
			fmt.Fprintln(stdout, renderStatusLine("Lock file", statusInfo, status.LockFilePath, colorize))
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Activity", colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout, renderStatusLine("Projects", statusInfo, fmt.Sprintf("%d", status.Projects), colorize))
			taskKind := statusInfo
			if status.LiveTasks > 0 {
				taskKind = statusOK
			}
			fmt.Fprintln(stdout, renderStatusLine("Live tasks", taskKind, fmt.Sprintf("%d", status.LiveTasks), colorize))
			return nil
		},
	}
}
