package cli

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/me/gosched/pkg/model"
)

func newListCmd() *cobra.Command {
	var (
		status string
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if status != "" {
				q.Set("status", status)
			}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			if offset > 0 {
				q.Set("offset", strconv.Itoa(offset))
			}
			path := "/api/v1/jobs/"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}
			return listJobs(cmd, path)
		},
	}

	cmd.Flags().StringVarP(&status, "status", "s", "", "Only jobs in this status")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum jobs to show (server default 100)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Jobs to skip")
	return cmd
}

// listJobs fetches a job listing and prints it as a table.
func listJobs(cmd *cobra.Command, path string) error {
	resp, err := client.Get(path)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}

	var jobs []*model.Job
	if err := resp.decode(&jobs); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(jobs) == 0 {
		fmt.Fprintln(out, "No jobs found.")
		return nil
	}

	printJobHeader(out)
	for _, j := range jobs {
		printJobRow(out, j)
	}

	if resp.Pagination != nil && resp.Pagination.HasMore {
		fmt.Fprintf(out, "\n(%d of %d shown)\n", len(jobs), resp.Pagination.Total)
	}
	return nil
}
