package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/case-routing-api/internal/bootstrap"
	"github.com/noah-isme/case-routing-api/internal/dto"
	"github.com/noah-isme/case-routing-api/internal/models"
)

func newSLACmd() *cobra.Command {
	var at string
	cmd := &cobra.Command{Use: "sla", Short: "SLA clock operations"}
	run := &cobra.Command{
		Use:   "run",
		Short: "Run the daily SLA update once",
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			if at != "" {
				parsed, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("--at must be RFC3339: %w", err)
				}
				now = parsed
			}
			return withContainer(cmd.Context(), func(c *bootstrap.Container) error {
				result, err := c.SLA.RunDailyUpdate(cmd.Context(), now)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	run.Flags().StringVar(&at, "at", "", "evaluate as of this RFC3339 time instead of now")
	cmd.AddCommand(run)
	return cmd
}

func newRouteCmd() *cobra.Command {
	var keepStatus bool
	cmd := &cobra.Command{
		Use:   "route <case-id>",
		Short: "Run routing rules for a case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd.Context(), func(c *bootstrap.Container) error {
				result, err := c.Workflow.RunRouting(cmd.Context(), args[0], dto.RunRoutingRequest{KeepStatus: keepStatus})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	cmd.Flags().BoolVar(&keepStatus, "keep-status", false, "never advance the status when no rule matches")
	return cmd
}

func newHolidaysCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "holidays", Short: "Bank holiday calendar operations"}
	cmd.AddCommand(&cobra.Command{
		Use:   "refresh",
		Short: "Fetch bank holidays and update the Redis and file fallbacks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd.Context(), func(c *bootstrap.Container) error {
				snapshot, err := c.Calendar.Refresh(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), dto.HolidayRefreshResponse{
					Division:  snapshot.Division,
					Holidays:  len(snapshot.Holidays),
					Source:    snapshot.Source,
					FetchedAt: snapshot.FetchedAt,
				})
			})
		},
	})
	return cmd
}

func newWorkingDayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "working-day <YYYY-MM-DD>",
		Short: "Report whether a date is a working day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd.Context(), func(c *bootstrap.Container) error {
				day, err := time.ParseInLocation(models.HolidayDateLayout, args[0], c.Config.SLA.Location)
				if err != nil {
					return fmt.Errorf("date must be YYYY-MM-DD: %w", err)
				}
				return printJSON(cmd.OutOrStdout(), dto.WorkingDayResponse{
					Date:               day.Format(models.HolidayDateLayout),
					WorkingDay:         c.Calendar.IsWorkingDay(cmd.Context(), day),
					PreviousWorkingDay: c.Calendar.PreviousWorkingDay(cmd.Context(), day).Format(models.HolidayDateLayout),
				})
			})
		},
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
