package cli

import (
	"fmt"
	"io"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/me/gosched/pkg/model"
)

// schedulerStatus mirrors the body of GET /scheduler/status.
type schedulerStatus struct {
	model.SchedulerStatus
	JobCounts map[model.Status]int `json:"job_counts"`
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show scheduler status and job counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get("/api/v1/scheduler/status")
			if err != nil {
				return fmt.Errorf("get scheduler status: %w", err)
			}
			var st schedulerStatus
			if err := resp.decode(&st); err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), st)
			return nil
		},
	}
}

func printStatus(w io.Writer, st schedulerStatus) {
	state := "stopped"
	if st.Running {
		state = "running"
	}
	fmt.Fprintf(w, "Scheduler: %s\n", state)
	fmt.Fprintf(w, "  Active jobs:   %d\n", st.ActiveJobs)
	fmt.Fprintf(w, "  Queued jobs:   %s\n", humanize.Comma(int64(st.TotalPending)))
	for _, alg := range model.Algorithms {
		if n := st.PendingByAlgorithm[alg]; n > 0 {
			fmt.Fprintf(w, "    %-12s %s\n", alg, humanize.Comma(int64(n)))
		}
	}

	if len(st.JobCounts) == 0 {
		return
	}
	fmt.Fprintln(w, "  Jobs by status:")
	statuses := make([]model.Status, 0, len(st.JobCounts))
	for s := range st.JobCounts {
		statuses = append(statuses, s)
	}
	slices.Sort(statuses)
	for _, s := range statuses {
		fmt.Fprintf(w, "    %-12s %s\n", s, humanize.Comma(int64(st.JobCounts[s])))
	}
}
