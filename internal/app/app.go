// Package app wires the metadata provider, the DuckDB executor and the
// aggregation service from configuration.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"cohortlens/internal/config"
	internaldb "cohortlens/internal/db"
	"cohortlens/internal/db/repository"
	"cohortlens/internal/domain"
	"cohortlens/internal/engine"
	"cohortlens/internal/manifest"
	"cohortlens/internal/service/aggregation"
)

// Deps holds what the caller must provide.
type Deps struct {
	Cfg    *config.Config
	Logger *slog.Logger
	// DuckDB, when set, is used instead of opening Cfg.DuckDBPath. The caller
	// keeps ownership.
	DuckDB *sql.DB
}

// App is the wired application.
type App struct {
	Aggregation *aggregation.Service
	Metadata    domain.MetadataProvider
	// Datasets is nil when metadata comes from manifests.
	Datasets *repository.MetadataRepo

	store    *internaldb.Store
	duckDB   *sql.DB
	ownsDuck bool
}

// New opens the metadata source and the columnar store and builds the
// aggregation service. Metadata comes from Cfg.ManifestDir when set,
// otherwise from the SQLite store at Cfg.MetaDBPath.
func New(_ context.Context, deps Deps) (*App, error) {
	cfg := deps.Cfg
	a := &App{}

	if cfg.ManifestDir != "" {
		p, err := manifest.LoadProvider(cfg.ManifestDir)
		if err != nil {
			return nil, fmt.Errorf("load manifests: %w", err)
		}
		a.Metadata = p
		deps.Logger.Info("metadata loaded from manifests", "dir", cfg.ManifestDir)
	} else {
		store, err := internaldb.OpenStore(cfg.MetaDBPath, 0)
		if err != nil {
			return nil, fmt.Errorf("open metadata store: %w", err)
		}
		a.store = store
		a.Datasets = repository.NewMetadataRepo(store.Write, store.Read)
		a.Metadata = a.Datasets
	}

	a.duckDB = deps.DuckDB
	if a.duckDB == nil {
		duck, err := engine.OpenDuckDB(cfg.DuckDBPath)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.duckDB = duck
		a.ownsDuck = true
	}

	executor := engine.NewExecutor(a.duckDB, cfg.QueryTimeout, deps.Logger)
	a.Aggregation = aggregation.NewService(a.Metadata, executor, cfg.AggregationOptions(), deps.Logger)
	return a, nil
}

// OpenDatasets opens only the SQLite metadata repository, for commands that
// register datasets without querying them.
func OpenDatasets(cfg *config.Config) (*repository.MetadataRepo, func() error, error) {
	store, err := internaldb.OpenStore(cfg.MetaDBPath, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("open metadata store: %w", err)
	}
	return repository.NewMetadataRepo(store.Write, store.Read), store.Close, nil
}

// DuckDB returns the columnar store handle.
func (a *App) DuckDB() *sql.DB {
	return a.duckDB
}

// Close releases everything New opened.
func (a *App) Close() error {
	var errs []error
	if a.ownsDuck && a.duckDB != nil {
		errs = append(errs, a.duckDB.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}
