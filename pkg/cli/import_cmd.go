package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cohortlens/internal/app"
	"cohortlens/internal/domain"
	"cohortlens/internal/engine"
	"cohortlens/internal/manifest"
)

type importResult struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Tables int    `json:"tables"`
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	var verify bool

	cmd := &cobra.Command{
		Use:   "import <manifest.yaml|dir>...",
		Short: "Register datasets from manifest files in the metadata store",
		Long: "Validates dataset manifests and stores their tables, columns and relationships in the " +
			"SQLite metadata store. With --verify, every declared table and column must exist in DuckDB.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := loadManifests(args)
			if err != nil {
				return err
			}
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}

			datasets := make([]*domain.Dataset, len(docs))
			for i, doc := range docs {
				datasets[i] = doc.Dataset()
			}

			if verify {
				duck, err := engine.OpenDuckDB(cfg.DuckDBPath)
				if err != nil {
					return err
				}
				defer duck.Close() //nolint:errcheck
				for _, ds := range datasets {
					issues, err := engine.CheckStorage(cmd.Context(), duck, ds.Tables)
					if err != nil {
						return err
					}
					if len(issues) > 0 {
						if err := printStorageIssues(cmd, ds.Name, issues); err != nil {
							return err
						}
						return fmt.Errorf("dataset %q does not match the store: %d issue(s)", ds.Name, len(issues))
					}
				}
			}

			repo, closeRepo, err := app.OpenDatasets(cfg)
			if err != nil {
				return err
			}
			defer closeRepo() //nolint:errcheck

			results := make([]importResult, 0, len(datasets))
			for _, ds := range datasets {
				saved, err := repo.ImportDataset(cmd.Context(), ds)
				if err != nil {
					return fmt.Errorf("import %q: %w", ds.Name, err)
				}
				results = append(results, importResult{ID: saved.ID, Name: saved.Name, Tables: len(saved.Tables)})
			}

			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), results)
			}
			tw := newTable(cmd.OutOrStdout(), "NAME", "ID", "TABLES")
			for _, r := range results {
				tw.row(r.Name, r.ID, fmt.Sprint(r.Tables))
			}
			return tw.flush()
		},
	}

	cmd.Flags().BoolVar(&verify, "verify", false, "Check declared tables and columns against DuckDB before importing")

	return cmd
}

// loadManifests reads every file argument and every manifest in directory
// arguments, in argument order.
func loadManifests(paths []string) ([]*manifest.Document, error) {
	var docs []*manifest.Document
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("manifest %s: %w", p, err)
		}
		if info.IsDir() {
			dirDocs, err := manifest.LoadDirectory(p)
			if err != nil {
				return nil, err
			}
			docs = append(docs, dirDocs...)
			continue
		}
		doc, err := manifest.LoadFile(p)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
