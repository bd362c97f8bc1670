package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/gosched/pkg/model"
)

func newCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job_id>",
		Short: "Cancel a pending or running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Post(jobPath(args[0])+"/cancel", nil)
			if err != nil {
				return fmt.Errorf("cancel job: %w", err)
			}
			var j model.Job
			if err := resp.decode(&j); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %d: %s\n", j.ID, j.Status)
			return nil
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <job_id>",
		Short: "Delete a job, stopping it first if it is running",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := client.Delete(jobPath(args[0])); err != nil {
				return fmt.Errorf("delete job: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %s deleted\n", args[0])
			return nil
		},
	}
}
