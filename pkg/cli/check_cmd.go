package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"cohortlens/internal/engine"
)

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <dataset>",
		Short: "Check that a dataset's tables and columns exist in DuckDB",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			tables, err := a.Metadata.ListTables(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			issues, err := engine.CheckStorage(cmd.Context(), a.DuckDB(), tables)
			if err != nil {
				return err
			}
			if err := printStorageIssues(cmd, args[0], issues); err != nil {
				return err
			}
			if len(issues) > 0 {
				return fmt.Errorf("dataset %q does not match the store: %d issue(s)", args[0], len(issues))
			}
			return nil
		},
	}
}

func printStorageIssues(cmd *cobra.Command, dataset string, issues []engine.StorageIssue) error {
	if getOutputFormat(cmd) == "json" {
		if issues == nil {
			issues = []engine.StorageIssue{}
		}
		return printJSON(cmd.OutOrStdout(), map[string]interface{}{
			"dataset": dataset,
			"valid":   len(issues) == 0,
			"issues":  issues,
		})
	}
	if len(issues) == 0 {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Dataset %q matches the store.\n", dataset)
		return nil
	}
	tw := newTable(cmd.OutOrStdout(), "TABLE", "COLUMN", "PROBLEM")
	for _, i := range issues {
		tw.row(i.Table, i.Column, i.Message)
	}
	return tw.flush()
}
