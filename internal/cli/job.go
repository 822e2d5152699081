package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewJobCmd создаёт группу команд для работы с jobs.
func NewJobCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Inspect and dispatch research jobs",
	}

	cmd.AddCommand(
		newJobListCmd(clientFn, outputFn),
		newJobShowCmd(clientFn, outputFn),
		newJobDispatchCmd(clientFn, outputFn),
	)

	return cmd
}

func newJobListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var opts ListJobsOpts

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := clientFn().ListJobs(opts)
			if err != nil {
				return err
			}

			headers := []string{"ID", "STATUS", "STATES", "DATA_TYPES", "DEPTH", "STARTED", "DURATION"}
			rows := make([][]string, len(jobs))
			for i, j := range jobs {
				duration := "-"
				if j.DurationMs > 0 {
					duration = strconv.FormatInt(j.DurationMs, 10) + "ms"
				}
				rows[i] = []string{
					j.ID, j.Status, formatList(j.States), formatList(j.DataTypes),
					j.Depth, j.StartedAt, duration,
				}
			}

			outputFn().Print(headers, rows, jobs)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Status, "status", "", "Filter by status (queued|running|success|error)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Max number of jobs")

	return cmd
}

func newJobShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show job details and logs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := clientFn().GetJob(args[0])
			if err != nil {
				return err
			}

			artifacts, programs := "-", "-"
			if j.Stats != nil {
				artifacts = strconv.Itoa(j.Stats.Artifacts)
				programs = strconv.Itoa(j.Stats.Programs)
			}

			headers := []string{"FIELD", "VALUE"}
			rows := [][]string{
				{"ID", j.ID},
				{"Status", j.Status},
				{"States", formatList(j.States)},
				{"Data types", formatList(j.DataTypes)},
				{"Depth", j.Depth},
				{"Since", orDash(j.Since)},
				{"Started", j.StartedAt},
				{"Finished", orDash(j.FinishedAt)},
				{"Artifacts", artifacts},
				{"Programs", programs},
				{"Error", orDash(j.ErrorText)},
				{"Logs", orDash(strings.Join(j.Logs, " | "))},
			}

			outputFn().Print(headers, rows, j)
			return nil
		},
	}
}

func newJobDispatchCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var req DispatchRequest

	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Dispatch research right now",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := clientFn().DispatchJob(req)
			if err != nil {
				return err
			}

			out := outputFn()
			rows := make([][]string, len(resp.JobIDs))
			for i, id := range resp.JobIDs {
				rows[i] = []string{id}
			}
			out.Print([]string{"JOB_ID"}, rows, resp)
			out.Success("Research dispatched")
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&req.States, "states", nil, "State codes (required)")
	cmd.Flags().StringSliceVar(&req.DataTypes, "data-types", nil, "Data types (required)")
	cmd.Flags().StringVar(&req.Depth, "depth", "", "Research depth: summary|full")
	cmd.Flags().StringVar(&req.Since, "since", "", "Only changes after this time, RFC3339")
	_ = cmd.MarkFlagRequired("states")
	_ = cmd.MarkFlagRequired("data-types")

	return cmd
}
