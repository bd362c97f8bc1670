package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/me/gosched/pkg/model"
)

const jobRowFormat = "%-6s  %-24s  %-11s  %-10s  %-4s  %-9s  %s\n"

func printJobHeader(w io.Writer) {
	fmt.Fprintf(w, jobRowFormat, "ID", "NAME", "ALGORITHM", "STATUS", "PRIO", "PROGRESS", "CREATED")
	fmt.Fprintf(w, jobRowFormat, "--", "----", "---------", "------", "----", "--------", "-------")
}

func printJobRow(w io.Writer, j *model.Job) {
	fmt.Fprintf(w, jobRowFormat,
		fmt.Sprint(j.ID),
		truncate(j.Name, 24),
		j.Algorithm,
		j.Status,
		fmt.Sprint(j.Priority),
		fmt.Sprintf("%d/%ds", j.Consumed, j.ExecutionTime),
		humanize.Time(j.CreatedAt),
	)
}

// printJob writes the detail view of one job.
func printJob(w io.Writer, j *model.Job) {
	fmt.Fprintf(w, "Job %d: %s\n", j.ID, j.Name)
	if j.Description != "" {
		fmt.Fprintf(w, "  Description: %s\n", j.Description)
	}
	fmt.Fprintf(w, "  Status:      %s\n", j.Status)
	fmt.Fprintf(w, "  Algorithm:   %s\n", j.Algorithm)
	fmt.Fprintf(w, "  Priority:    %d\n", j.Priority)
	fmt.Fprintf(w, "  Work:        %ds of %ds done\n", j.Consumed, j.ExecutionTime)
	fmt.Fprintf(w, "  Created:     %s\n", stamp(j.CreatedAt))
	if j.StartedAt != nil {
		fmt.Fprintf(w, "  Started:     %s\n", stamp(*j.StartedAt))
	}
	if j.CompletedAt != nil {
		fmt.Fprintf(w, "  Finished:    %s\n", stamp(*j.CompletedAt))
	}
	if j.Result != "" {
		fmt.Fprintf(w, "  Result:      %s\n", j.Result)
	}
	if j.ErrorMessage != "" {
		fmt.Fprintf(w, "  Error:       %s\n", j.ErrorMessage)
	}
}

func stamp(t time.Time) string {
	return fmt.Sprintf("%s (%s)", t.Local().Format(time.DateTime), humanize.Time(t))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
