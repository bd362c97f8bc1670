package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSchedulerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scheduler",
		Short: "Control the scheduler",
	}
	cmd.AddCommand(
		newSchedulerToggleCmd("start", "Start admitting jobs"),
		newSchedulerToggleCmd("stop", "Stop the scheduler and every running job"),
		newSchedulerJobsCmd(),
		newSchedulerClearCmd(),
	)
	return cmd
}

func newSchedulerToggleCmd(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Post("/api/v1/scheduler/"+action, nil)
			if err != nil {
				return fmt.Errorf("%s scheduler: %w", action, err)
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

func newSchedulerJobsCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "jobs <active|pending|completed|failed>",
		Short:     "List jobs the scheduler tracks in one state",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"active", "pending", "completed", "failed"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return listJobs(cmd, "/api/v1/scheduler/jobs/"+args[0])
		},
	}
}

func newSchedulerClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "clear <completed|failed>",
		Short:     "Delete finished jobs",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"completed", "failed"},
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Post("/api/v1/scheduler/jobs/clear-"+args[0], nil)
			if err != nil {
				return fmt.Errorf("clear %s jobs: %w", args[0], err)
			}
			var data struct {
				Deleted int64 `json:"deleted"`
			}
			if err := resp.decode(&data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d %s jobs\n", data.Deleted, args[0])
			return nil
		},
	}
}
