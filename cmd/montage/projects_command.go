package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"montage/internal/api"
)

func newProjectsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "projects [project-id]",
		Short: "List projects in the library, or show one project's shots",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return err
			}

			if len(args) == 1 {
				return showProject(cmd, store, args[0])
			}
			return listProjects(cmd, store)
		},
	}
}

func listProjects(cmd *cobra.Command, store projectReader) error {
	ids, err := store.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}
	sort.Strings(ids)

	stdout := cmd.OutOrStdout()
	if len(ids) == 0 {
		fmt.Fprintln(stdout, "Library is empty")
		return nil
	}

	rows := make([][]string, 0, len(ids))
	for _, id := range ids {
		project, err := store.Read(cmd.Context(), id)
		if err != nil {
			rows = append(rows, []string{id, "unreadable", "", ""})
			continue
		}
		summary := api.Summarize(project)
		rows = append(rows, []string{
			summary.ID,
			summary.Stage,
			strconv.Itoa(summary.Shots),
			strconv.Itoa(summary.RenderJobs),
		})
	}

	table := renderTable(
		[]string{"Project", "Stage", "Shots", "Render Jobs"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
	)
	fmt.Fprintln(stdout, table)
	return nil
}

func showProject(cmd *cobra.Command, store projectReader, projectID string) error {
	project, err := store.Read(cmd.Context(), projectID)
	if err != nil {
		return fmt.Errorf("read project %s: %w", projectID, err)
	}
	detail := api.FromProject(project)

	stdout := cmd.OutOrStdout()
	fmt.Fprintf(stdout, "Project %s", detail.ID)
	if detail.Stage != "" {
		fmt.Fprintf(stdout, " (%s)", detail.Stage)
	}
	fmt.Fprintln(stdout)

	if len(detail.Shots) == 0 {
		fmt.Fprintln(stdout, "No shots")
		return nil
	}

	title := cases.Title(language.Und)
	rows := make([][]string, 0, len(detail.Shots))
	for _, shot := range detail.Shots {
		media := fmt.Sprintf("%d images, %d enhanced", len(shot.GeneratedImages), len(shot.EnhancedImages))
		if shot.VideoFile != nil && *shot.VideoFile != "" {
			media += ", video"
		}
		rows = append(rows, []string{
			strconv.Itoa(shot.Order),
			shot.ID,
			title.String(shot.Status),
			media,
		})
	}

	table := renderTable(
		[]string{"Order", "Shot", "Status", "Media"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
	)
	fmt.Fprintln(stdout, table)
	return nil
}
