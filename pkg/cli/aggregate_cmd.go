package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"cohortlens/internal/domain"
	"cohortlens/internal/service/aggregation"
)

func newAggregateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Compute column statistics",
	}

	cmd.AddCommand(newAggregateColumnCmd(opts))
	cmd.AddCommand(newAggregateTableCmd(opts))

	return cmd
}

func newAggregateColumnCmd(opts *rootOptions) *cobra.Command {
	var (
		req         requestFlags
		displayType string
	)

	cmd := &cobra.Command{
		Use:   "column <dataset> <table> <column>",
		Short: "Statistics of one column",
		Args:  cobra.ExactArgs(3),
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

			agg, err := a.Aggregation.GetColumnAggregation(cmd.Context(), aggregation.ColumnRequest{
				DatasetID:   args[0],
				Table:       args[1],
				Column:      args[2],
				DisplayType: displayType,
				Filter:      filter,
				CountBy:     countBy,
			})
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), agg)
			}
			return printColumnAggregation(cmd.OutOrStdout(), agg)
		},
	}

	req.register(cmd)
	cmd.Flags().StringVar(&displayType, "display-type", "", "Override the column's display type")

	return cmd
}

func newAggregateTableCmd(opts *rootOptions) *cobra.Command {
	var req requestFlags

	cmd := &cobra.Command{
		Use:   "table <dataset> <table>",
		Short: "Statistics of every visible column of a table",
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

			cols, err := a.Aggregation.GetTableAggregations(cmd.Context(), aggregation.TableRequest{
				DatasetID: args[0],
				Table:     args[1],
				Filter:    filter,
				CountBy:   countBy,
			})
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"table":   args[1],
					"columns": cols,
				})
			}

			tw := newTable(cmd.OutOrStdout(), "COLUMN", "TYPE", "TOTAL", "NULLS", "UNIQUE", "SUMMARY")
			for i := range cols {
				c := &cols[i]
				tw.row(c.ColumnName, c.DisplayType, formatInt(c.TotalRows), formatInt(c.NullCount),
					formatInt(c.UniqueCount), columnSummary(c))
			}
			return tw.flush()
		},
	}

	req.register(cmd)

	return cmd
}

// columnSummary is a one-cell digest of a column for the table view.
func columnSummary(c *domain.ColumnAggregation) string {
	switch {
	case c.Error != "":
		return "error: " + c.Error
	case c.NumericStats != nil:
		s := c.NumericStats
		return fmt.Sprintf("min %s, median %s, max %s", formatFloat(s.Min), formatFloat(s.Median), formatFloat(s.Max))
	case len(c.Categories) > 0:
		top := make([]string, 0, 3)
		for i, cat := range c.Categories {
			if i == 3 {
				break
			}
			top = append(top, fmt.Sprintf("%s (%s)", cat.DisplayValue, formatInt(cat.Count)))
		}
		return strings.Join(top, ", ")
	default:
		return ""
	}
}

func printColumnAggregation(w io.Writer, agg *domain.ColumnAggregation) error {
	_, _ = fmt.Fprintf(w, "Column:  %s (%s)\n", agg.ColumnName, agg.DisplayType)
	metric := string(agg.MetricType)
	if len(agg.MetricPath) > 0 {
		metric += " via " + strings.Join(agg.MetricPath, " -> ")
	}
	_, _ = fmt.Fprintf(w, "Metric:  %s\n", metric)
	_, _ = fmt.Fprintf(w, "Total:   %s  Nulls: %s  Unique: %s\n\n",
		formatInt(agg.TotalRows), formatInt(agg.NullCount), formatInt(agg.UniqueCount))

	if len(agg.Categories) > 0 {
		tw := newTable(w, "VALUE", "COUNT", "PERCENT")
		for _, c := range agg.Categories {
			tw.row(c.DisplayValue, formatInt(c.Count), formatPercent(c.Percentage))
		}
		return tw.flush()
	}

	if s := agg.NumericStats; s != nil {
		tw := newTable(w, "STAT", "VALUE")
		tw.row("count", formatInt(s.Count))
		tw.row("min", formatFloat(s.Min))
		tw.row("q1", formatFloat(s.Q1))
		tw.row("median", formatFloat(s.Median))
		tw.row("mean", formatFloat(s.Mean))
		tw.row("q3", formatFloat(s.Q3))
		tw.row("max", formatFloat(s.Max))
		tw.row("stddev", formatFloat(s.StdDev))
		if err := tw.flush(); err != nil {
			return err
		}
	}
	if len(agg.Histogram) > 0 {
		_, _ = fmt.Fprintln(w)
		tw := newTable(w, "BIN START", "BIN END", "COUNT", "PERCENT")
		for _, b := range agg.Histogram {
			tw.row(formatFloat(b.BinStart), formatFloat(b.BinEnd), formatInt(b.Count), formatPercent(b.Percentage))
		}
		return tw.flush()
	}
	return nil
}
