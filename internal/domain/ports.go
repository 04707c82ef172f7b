package domain

import "context"

// MetadataProvider returns the tables, columns and declared relationships of
// a dataset. Implemented by repository.MetadataRepo and manifest.Provider.
type MetadataProvider interface {
	ListTables(ctx context.Context, datasetID string) ([]TableMetadata, error)
}

// QueryExecutor runs read-only SELECT statements against the columnar store.
// Implemented by engine.Executor.
type QueryExecutor interface {
	Query(ctx context.Context, sqlQuery string) (*QueryResult, error)
}

// DatasetRepository persists dataset metadata. Implemented by
// repository.MetadataRepo.
type DatasetRepository interface {
	MetadataProvider
	ImportDataset(ctx context.Context, ds *Dataset) (*Dataset, error)
	ListDatasets(ctx context.Context) ([]Dataset, error)
}
