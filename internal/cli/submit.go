package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/me/gosched/pkg/model"
)

// jobsFile is the batch submission format accepted by submit -f.
type jobsFile struct {
	Jobs []model.JobCreate `yaml:"jobs"`
}

func newSubmitCmd() *cobra.Command {
	var (
		file     string
		req      model.JobCreate
		priority int
	)

	cmd := &cobra.Command{
		Use:   "submit [name]",
		Short: "Submit a job, or a batch of jobs from a YAML file",
		Long: `Submit a job described by flags, or every job listed in a YAML file:

  jobs:
    - name: backup
      execution_time: 5
      algorithm: priority
      priority: 3`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var reqs []model.JobCreate
			if file != "" {
				if len(args) > 0 {
					return errors.New("a job name cannot be combined with --file")
				}
				batch, err := readJobsFile(file)
				if err != nil {
					return err
				}
				reqs = batch
			} else {
				if len(args) == 1 {
					req.Name = args[0]
				}
				if cmd.Flags().Changed("priority") {
					req.Priority = &priority
				}
				reqs = []model.JobCreate{req}
			}

			out := cmd.OutOrStdout()
			for _, r := range reqs {
				resp, err := client.Post("/api/v1/jobs/", r)
				if err != nil {
					return fmt.Errorf("submit job %q: %w", r.Name, err)
				}
				var j model.Job
				if err := resp.decode(&j); err != nil {
					return err
				}
				fmt.Fprintf(out, "Job submitted: %d %s (algorithm: %s, status: %s)\n", j.ID, j.Name, j.Algorithm, j.Status)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with a list of jobs")
	cmd.Flags().StringVar(&req.Name, "name", "", "Job name")
	cmd.Flags().StringVar(&req.Description, "description", "", "Job description")
	cmd.Flags().IntVar(&req.ExecutionTime, "execution-time", 1, "Seconds of work the job needs")
	cmd.Flags().IntVar(&priority, "priority", model.DefaultPriority, "Priority (larger runs first)")
	cmd.Flags().StringVarP((*string)(&req.Algorithm), "algorithm", "a", string(model.AlgorithmFIFO), "fifo, round_robin, sjf or priority")
	cmd.Flags().StringVar(&req.Script, "script", "", "JavaScript expression producing the job result")
	return cmd
}

func readJobsFile(path string) ([]model.JobCreate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read jobs file: %w", err)
	}
	var f jobsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse jobs file: %w", err)
	}
	if len(f.Jobs) == 0 {
		return nil, fmt.Errorf("jobs file %s lists no jobs", path)
	}
	return f.Jobs, nil
}
