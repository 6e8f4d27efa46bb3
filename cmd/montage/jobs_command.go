package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"montage/internal/api"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "jobs <project-id>",
		Short: "List a project's render jobs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			return listRenderJobs(cmd, store, args[0])
		},
	}
}

func listRenderJobs(cmd *cobra.Command, store projectReader, projectID string) error {
	project, err := store.Read(cmd.Context(), projectID)
	if err != nil {
		return fmt.Errorf("read project %s: %w", projectID, err)
	}

	stdout := cmd.OutOrStdout()
	if len(project.RenderJobs) == 0 {
		fmt.Fprintln(stdout, "No render jobs")
		return nil
	}

	jobs := make([]api.RenderJobView, 0, len(project.RenderJobs))
	for _, job := range project.RenderJobs {
		jobs = append(jobs, api.FromRenderJob(job))
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt != jobs[j].CreatedAt {
			return jobs[i].CreatedAt > jobs[j].CreatedAt
		}
		return jobs[i].ID > jobs[j].ID
	})

	title := cases.Title(language.Und)
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			job.ID,
			title.String(job.Quality),
			title.String(job.Status),
			strconv.Itoa(job.Progress) + "%",
			outputCell(store, projectID, job),
		})
	}

	table := renderTable(
		[]string{"Job", "Quality", "Status", "Progress", "Output"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
	fmt.Fprintln(stdout, table)
	return nil
}

// outputCell describes a job's output file, including its on-disk size when
// the file is present.
func outputCell(store projectReader, projectID string, job api.RenderJobView) string {
	if job.Status == "failed" && job.ErrorMessage != "" {
		return job.ErrorMessage
	}
	if job.OutputFile == "" {
		return ""
	}
	path, err := store.RenderOutputPath(projectID, job.ID)
	if err != nil {
		return job.OutputFile
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Sprintf("%s (missing)", job.OutputFile)
	}
	return fmt.Sprintf("%s (%s)", job.OutputFile, humanize.Bytes(uint64(info.Size())))
}
