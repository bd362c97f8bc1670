package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/gosched/pkg/model"
)

func newUpdateCmd() *cobra.Command {
	var (
		name, description, algorithm, script string
		priority, executionTime              int
	)

	cmd := &cobra.Command{
		Use:   "update <job_id>",
		Short: "Edit a pending job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req model.JobUpdate
			flags := cmd.Flags()
			if flags.Changed("name") {
				req.Name = &name
			}
			if flags.Changed("description") {
				req.Description = &description
			}
			if flags.Changed("priority") {
				req.Priority = &priority
			}
			if flags.Changed("execution-time") {
				req.ExecutionTime = &executionTime
			}
			if flags.Changed("algorithm") {
				alg := model.Algorithm(algorithm)
				req.Algorithm = &alg
			}
			if flags.Changed("script") {
				req.Script = &script
			}
			if req == (model.JobUpdate{}) {
				return errors.New("nothing to update: set at least one flag")
			}

			resp, err := client.Put(jobPath(args[0]), req)
			if err != nil {
				return fmt.Errorf("update job: %w", err)
			}
			var j model.Job
			if err := resp.decode(&j); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %d updated\n", j.ID)
			printJob(cmd.OutOrStdout(), &j)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New name")
	cmd.Flags().StringVar(&description, "description", "", "New description")
	cmd.Flags().IntVar(&priority, "priority", 0, "New priority")
	cmd.Flags().IntVar(&executionTime, "execution-time", 0, "New execution time in seconds")
	cmd.Flags().StringVarP(&algorithm, "algorithm", "a", "", "Move the job to another algorithm")
	cmd.Flags().StringVar(&script, "script", "", "New result script")
	return cmd
}
