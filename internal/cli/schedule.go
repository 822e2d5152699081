package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewScheduleCmd создаёт группу команд для управления расписаниями.
func NewScheduleCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage research schedules",
	}

	cmd.AddCommand(
		newScheduleListCmd(clientFn, outputFn),
		newScheduleCreateCmd(clientFn, outputFn),
		newScheduleShowCmd(clientFn, outputFn),
		newScheduleUpdateCmd(clientFn, outputFn),
		newScheduleDeleteCmd(clientFn, outputFn),
		newScheduleEnableCmd(clientFn, outputFn),
		newScheduleDisableCmd(clientFn, outputFn),
		newScheduleDueCmd(clientFn, outputFn),
		newScheduleUpcomingCmd(clientFn, outputFn),
	)

	return cmd
}

var scheduleHeaders = []string{"ID", "NAME", "CRON", "STATES", "DATA_TYPES", "DEPTH", "ACTIVE", "NEXT_RUN"}

func scheduleRow(s ScheduleResponse) []string {
	return []string{
		s.ID, s.Name, s.CronExpr, formatList(s.States), formatList(s.DataTypes),
		s.Depth, strconv.FormatBool(s.IsActive), s.NextRunAt,
	}
}

func printSchedules(out *Output, schedules []ScheduleResponse) {
	rows := make([][]string, len(schedules))
	for i, s := range schedules {
		rows[i] = scheduleRow(s)
	}
	out.Print(scheduleHeaders, rows, schedules)
}

func newScheduleListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var active string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			if active != "" && active != "true" && active != "false" {
				return fmt.Errorf("--active must be true or false")
			}

			schedules, err := clientFn().ListSchedules(active)
			if err != nil {
				return err
			}

			printSchedules(outputFn(), schedules)
			return nil
		},
	}

	cmd.Flags().StringVar(&active, "active", "", "Filter by activity (true|false)")

	return cmd
}

func newScheduleCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var (
		description string
		cronExpr    string
		states      []string
		dataTypes   []string
		depth       string
		inactive    bool
	)

	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a research schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := CreateScheduleRequest{
				Name:        args[0],
				Description: description,
				CronExpr:    cronExpr,
				States:      states,
				DataTypes:   dataTypes,
				Depth:       depth,
			}
			if inactive {
				active := false
				req.IsActive = &active
			}

			schedule, err := clientFn().CreateSchedule(req)
			if err != nil {
				return err
			}

			out := outputFn()
			out.Print(
				[]string{"ID", "NAME", "CRON", "NEXT_RUN"},
				[][]string{{schedule.ID, schedule.Name, schedule.CronExpr, schedule.NextRunAt}},
				schedule,
			)
			out.Success("Schedule created")
			return nil
		},
	}

	cmd.Flags().StringVar(&cronExpr, "cron", "", "Cron expression, 5 fields, UTC (required)")
	cmd.Flags().StringSliceVar(&states, "states", nil, "State codes, e.g. CA,NY (required)")
	cmd.Flags().StringSliceVar(&dataTypes, "data-types", nil, "Data types: rules,emissions,inspections,bulletins,forms (required)")
	cmd.Flags().StringVar(&depth, "depth", "", "Research depth: summary|full")
	cmd.Flags().StringVar(&description, "description", "", "Schedule description")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "Create schedule disabled")
	_ = cmd.MarkFlagRequired("cron")
	_ = cmd.MarkFlagRequired("states")
	_ = cmd.MarkFlagRequired("data-types")

	return cmd
}

func newScheduleShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show schedule details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := clientFn().GetSchedule(args[0])
			if err != nil {
				return err
			}

			headers := []string{"FIELD", "VALUE"}
			rows := [][]string{
				{"ID", s.ID},
				{"Name", s.Name},
				{"Description", orDash(s.Description)},
				{"Cron", s.CronExpr},
				{"States", formatList(s.States)},
				{"Data types", formatList(s.DataTypes)},
				{"Depth", s.Depth},
				{"Active", strconv.FormatBool(s.IsActive)},
				{"Last run", orDash(s.LastRunAt)},
				{"Next run", s.NextRunAt},
				{"Created", s.CreatedAt},
				{"Updated", s.UpdatedAt},
			}

			outputFn().Print(headers, rows, s)
			return nil
		},
	}
}

func newScheduleUpdateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var (
		name        string
		description string
		cronExpr    string
		states      []string
		dataTypes   []string
		depth       string
	)

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req UpdateScheduleRequest
			flags := cmd.Flags()
			if flags.Changed("name") {
				req.Name = &name
			}
			if flags.Changed("description") {
				req.Description = &description
			}
			if flags.Changed("cron") {
				req.CronExpr = &cronExpr
			}
			if flags.Changed("states") {
				req.States = &states
			}
			if flags.Changed("data-types") {
				req.DataTypes = &dataTypes
			}
			if flags.Changed("depth") {
				req.Depth = &depth
			}

			schedule, err := clientFn().UpdateSchedule(args[0], req)
			if err != nil {
				return err
			}

			out := outputFn()
			out.Print(
				[]string{"ID", "NAME", "CRON", "NEXT_RUN"},
				[][]string{{schedule.ID, schedule.Name, schedule.CronExpr, schedule.NextRunAt}},
				schedule,
			)
			out.Success("Schedule updated")
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New name")
	cmd.Flags().StringVar(&description, "description", "", "New description")
	cmd.Flags().StringVar(&cronExpr, "cron", "", "New cron expression")
	cmd.Flags().StringSliceVar(&states, "states", nil, "New state codes")
	cmd.Flags().StringSliceVar(&dataTypes, "data-types", nil, "New data types")
	cmd.Flags().StringVar(&depth, "depth", "", "New depth")

	return cmd
}

func newScheduleDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := clientFn().DeleteSchedule(args[0]); err != nil {
				return err
			}

			outputFn().Success("Schedule deleted")
			return nil
		},
	}
}

func newScheduleEnableCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return newScheduleToggleCmd("enable", "Enable a schedule", true, clientFn, outputFn)
}

func newScheduleDisableCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return newScheduleToggleCmd("disable", "Disable a schedule", false, clientFn, outputFn)
}

func newScheduleToggleCmd(use, short string, active bool, clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   use + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := clientFn().SetScheduleActive(args[0], active); err != nil {
				return err
			}

			outputFn().Success("Schedule " + use + "d")
			return nil
		},
	}
}

func newScheduleDueCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "due",
		Short: "List schedules due to run",
		RunE: func(cmd *cobra.Command, args []string) error {
			schedules, err := clientFn().ListDue(at)
			if err != nil {
				return err
			}

			printSchedules(outputFn(), schedules)
			return nil
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "Reference time, RFC3339 (default: now)")

	return cmd
}

func newScheduleUpcomingCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var hours int

	cmd := &cobra.Command{
		Use:   "upcoming",
		Short: "List runs expected in the next hours",
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := clientFn().ListUpcoming(hours)
			if err != nil {
				return err
			}

			headers := []string{"SCHEDULE_ID", "NAME", "CRON", "FIRES_AT", "IN"}
			rows := make([][]string, len(runs))
			for i, r := range runs {
				rows[i] = []string{
					r.Schedule.ID, r.Schedule.Name, r.Schedule.CronExpr,
					r.NextFireTime, formatDuration(r.TimeUntilSeconds),
				}
			}

			outputFn().Print(headers, rows, runs)
			return nil
		},
	}

	cmd.Flags().IntVar(&hours, "hours", 24, "Look-ahead window in hours")

	return cmd
}
