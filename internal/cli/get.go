package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/gosched/pkg/model"
)

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <job_id>",
		Short: "Show a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get(jobPath(args[0]))
			if err != nil {
				return fmt.Errorf("get job: %w", err)
			}
			var j model.Job
			if err := resp.decode(&j); err != nil {
				return err
			}
			printJob(cmd.OutOrStdout(), &j)
			return nil
		},
	}
}
