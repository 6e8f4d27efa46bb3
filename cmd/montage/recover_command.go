package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRecoverCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "recover [project-id...]",
		Short: "Localize external references across the library",
		Long: "Asks the daemon to download every external reference still present in " +
			"project documents and rewrite the documents to local filenames. With no " +
			"arguments the whole library is scanned.",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := ctx.apiAddr()
			if err != nil {
				return err
			}

			report, err := newAPIClient(addr).recover(cmd.Context(), args)
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			fmt.Fprintf(stdout, "Scanned %d projects (%d shots)\n", report.Projects, report.Shots)
			fmt.Fprintf(stdout, "External references found: %d\n", report.ReferencesFound)
			fmt.Fprintf(stdout, "Localized: %d\n", report.Localized)
			if report.Failed > 0 {
				fmt.Fprintf(stdout, "Failed: %d (see daemon logs)\n", report.Failed)
			}
			return nil
		},
	}
}
