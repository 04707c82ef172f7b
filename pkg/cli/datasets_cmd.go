package cli

import (
	"time"

	"github.com/spf13/cobra"

	"cohortlens/internal/app"
	"cohortlens/internal/manifest"
)

type datasetRow struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Tables      int       `json:"tables,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
}

func newDatasetsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "datasets",
		Short: "List registered datasets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}

			var rows []datasetRow
			if cfg.ManifestDir != "" {
				docs, err := manifest.LoadDirectory(cfg.ManifestDir)
				if err != nil {
					return err
				}
				for _, d := range docs {
					rows = append(rows, datasetRow{ID: d.ID, Name: d.Name, Description: d.Description, Tables: len(d.Tables)})
				}
			} else {
				repo, closeRepo, err := app.OpenDatasets(cfg)
				if err != nil {
					return err
				}
				defer closeRepo() //nolint:errcheck
				list, err := repo.ListDatasets(cmd.Context())
				if err != nil {
					return err
				}
				for _, d := range list {
					rows = append(rows, datasetRow{ID: d.ID, Name: d.Name, Description: d.Description, CreatedAt: d.CreatedAt})
				}
			}

			if getOutputFormat(cmd) == "json" {
				if rows == nil {
					rows = []datasetRow{}
				}
				return printJSON(cmd.OutOrStdout(), rows)
			}
			tw := newTable(cmd.OutOrStdout(), "NAME", "ID", "DESCRIPTION")
			for _, r := range rows {
				tw.row(r.Name, r.ID, r.Description)
			}
			return tw.flush()
		},
	}
}
