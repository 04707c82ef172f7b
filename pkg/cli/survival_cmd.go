package cli

import (
	"github.com/spf13/cobra"

	"cohortlens/internal/service/aggregation"
)

func newSurvivalCmd(opts *rootOptions) *cobra.Command {
	var (
		req          requestFlags
		timeColumn   string
		statusColumn string
	)

	cmd := &cobra.Command{
		Use:   "survival <dataset> <table>",
		Short: "Kaplan-Meier survival curve from a time and a status column",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, countBy, err := req.parse()
			if err != nil {
				return err
			}
			a, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			points, err := a.Aggregation.GetSurvivalCurve(cmd.Context(), aggregation.SurvivalRequest{
				DatasetID:    args[0],
				Table:        args[1],
				TimeColumn:   timeColumn,
				StatusColumn: statusColumn,
				Filter:       filter,
				CountBy:      countBy,
			})
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"time_column":   timeColumn,
					"status_column": statusColumn,
					"points":        points,
				})
			}

			tw := newTable(cmd.OutOrStdout(), "TIME", "AT RISK", "EVENTS", "CENSORED", "SURVIVAL")
			for _, p := range points {
				tw.row(formatFloat(p.Time), formatInt(p.AtRisk), formatInt(p.Events), formatInt(p.Censored), formatFloat(p.Survival))
			}
			return tw.flush()
		},
	}

	req.register(cmd)
	cmd.Flags().StringVar(&timeColumn, "time", "", "Time-to-event column (required)")
	cmd.Flags().StringVar(&statusColumn, "status", "", "Event status column (required)")
	_ = cmd.MarkFlagRequired("time")
	_ = cmd.MarkFlagRequired("status")

	return cmd
}
