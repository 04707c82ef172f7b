package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cohortlens/internal/service/aggregation"
)

func newExplainCmd(opts *rootOptions) *cobra.Command {
	var req requestFlags

	cmd := &cobra.Command{
		Use:   "explain <dataset> <table>",
		Short: "Show the compiled WHERE clause and metric joins without running them",
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

			plan, err := a.Aggregation.Explain(cmd.Context(), aggregation.TableRequest{
				DatasetID: args[0],
				Table:     args[1],
				Filter:    filter,
				CountBy:   countBy,
			})
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), plan)
			}

			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "Table:   %s\n", plan.Table)
			metric := plan.MetricType
			if len(plan.MetricPath) > 0 {
				metric += " via " + strings.Join(plan.MetricPath, " -> ")
			}
			_, _ = fmt.Fprintf(w, "Metric:  %s\n", metric)
			for _, j := range plan.Joins {
				_, _ = fmt.Fprintf(w, "Join:    %s AS %s ON %s\n", j.QualifiedTable, j.Alias, j.OnCondition)
			}
			where := plan.Where
			if where == "" {
				where = "(none)"
			}
			_, _ = fmt.Fprintf(w, "Where:   %s\n\n%s\n", where, plan.CountSQL)
			return nil
		},
	}

	req.register(cmd)

	return cmd
}
