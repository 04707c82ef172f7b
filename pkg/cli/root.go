// Package cli implements the cohort command-line tool. Commands run the
// aggregation engine in-process against a local DuckDB file.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"cohortlens/internal/app"
	"cohortlens/internal/config"
	"cohortlens/internal/domain"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI.
func Execute() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		output, _ := rootCmd.PersistentFlags().GetString("output")
		if output == "json" {
			errObj := map[string]interface{}{
				"error": err.Error(),
			}
			if code := errorCode(err); code != "" {
				errObj["code"] = code
			}
			_ = printJSON(os.Stdout, errObj)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// errorCode names the domain error class of err, if any.
func errorCode(err error) string {
	var (
		nf   *domain.NotFoundError
		ve   *domain.ValidationError
		re   *domain.RelationshipError
		conf *domain.ConflictError
	)
	switch {
	case errors.As(err, &nf):
		return "NOT_FOUND"
	case errors.As(err, &ve):
		return "VALIDATION_ERROR"
	case errors.As(err, &re):
		return "RELATIONSHIP_ERROR"
	case errors.As(err, &conf):
		return "CONFLICT"
	default:
		return ""
	}
}

// rootOptions holds the persistent flags and the profile resolved from them.
type rootOptions struct {
	duckDB    string
	metaDB    string
	manifests string
	output    string
	profile   string
	logLevel  string
	envFile   string

	active Profile
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "cohort",
		Short:         "Cohort aggregation CLI",
		Long:          "Filter and aggregate clinical datasets stored in DuckDB.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			p, err := loadUserConfigOrEmpty().ActiveProfile(opts.profile)
			if err != nil {
				return err
			}
			opts.active = p

			// Apply precedence: flag > env > profile > default
			if !cmd.Flags().Changed("output") {
				if v := os.Getenv("COHORT_OUTPUT"); v != "" {
					opts.output = v
				} else if p.Output != "" {
					opts.output = p.Output
				}
			}
			return validateOutputFormat(opts.output)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.duckDB, "duckdb", "", "DuckDB database file (env DUCKDB_PATH)")
	pf.StringVar(&opts.metaDB, "meta-db", "", "SQLite metadata store (env META_DB_PATH)")
	pf.StringVar(&opts.manifests, "manifests", "", "Read dataset metadata from this manifest directory (env MANIFEST_DIR)")
	pf.StringVarP(&opts.output, "output", "o", "table", "Output format (table, json)")
	pf.StringVarP(&opts.profile, "profile", "p", "", "Config profile to use")
	pf.StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	pf.StringVar(&opts.envFile, "env-file", ".env", "Environment file loaded before reading settings")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd())

	rootCmd.AddCommand(newImportCmd(opts))
	rootCmd.AddCommand(newDatasetsCmd(opts))
	rootCmd.AddCommand(newCheckCmd(opts))
	rootCmd.AddCommand(newAggregateCmd(opts))
	rootCmd.AddCommand(newSurvivalCmd(opts))
	rootCmd.AddCommand(newExplainCmd(opts))

	// Shell completions
	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd
}

// loadConfig reads .env and the environment, then applies the persistent
// flags and the active profile.
func (o *rootOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if err := config.LoadDotEnv(o.envFile); err != nil {
		return nil, err
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	settings := []struct {
		flag    string
		env     string
		flagVal string
		profVal string
		dst     *string
	}{
		{"duckdb", "DUCKDB_PATH", o.duckDB, o.active.DuckDB, &cfg.DuckDBPath},
		{"meta-db", "META_DB_PATH", o.metaDB, o.active.MetaDB, &cfg.MetaDBPath},
		{"manifests", "MANIFEST_DIR", o.manifests, o.active.Manifests, &cfg.ManifestDir},
	}
	for _, s := range settings {
		switch {
		case cmd.Flags().Changed(s.flag):
			*s.dst = s.flagVal
		case os.Getenv(s.env) != "":
		case s.profVal != "":
			*s.dst = s.profVal
		}
	}
	return cfg, nil
}

func (o *rootOptions) logger(w io.Writer) *slog.Logger {
	lvl := (&config.Config{LogLevel: o.logLevel}).SlogLevel()
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// openApp wires the aggregation service for commands that query data.
func (o *rootOptions) openApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := o.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := o.logger(cmd.ErrOrStderr())
	for _, w := range cfg.Warnings {
		logger.Debug(w)
	}
	return app.New(cmd.Context(), app.Deps{Cfg: cfg, Logger: logger})
}

func newCompletionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	}
	return cmd
}
