// Package testutil provides shared mock implementations of domain interfaces
// for use in tests across the codebase. This follows the Go convention of a
// shared test utility package (like net/http/httptest).
package testutil

import (
	"context"
	"sync"

	"cohortlens/internal/domain"
)

// === Metadata Provider Mock ===

// MockMetadataProvider implements domain.MetadataProvider for testing.
type MockMetadataProvider struct {
	ListTablesFn func(ctx context.Context, datasetID string) ([]domain.TableMetadata, error)
}

// ListTables implements the interface method for testing.
func (m *MockMetadataProvider) ListTables(ctx context.Context, datasetID string) ([]domain.TableMetadata, error) {
	if m.ListTablesFn != nil {
		return m.ListTablesFn(ctx, datasetID)
	}
	panic("unexpected call to MockMetadataProvider.ListTables")
}

// StaticMetadata returns a provider that serves tables for any dataset.
func StaticMetadata(tables []domain.TableMetadata) *MockMetadataProvider {
	return &MockMetadataProvider{
		ListTablesFn: func(_ context.Context, _ string) ([]domain.TableMetadata, error) {
			return tables, nil
		},
	}
}

// === Query Executor Mock ===

// MockQueryExecutor implements domain.QueryExecutor for testing. Every query
// is recorded; it is safe for concurrent use.
type MockQueryExecutor struct {
	QueryFn func(ctx context.Context, sqlQuery string) (*domain.QueryResult, error)

	mu      sync.Mutex
	Queries []string
}

// Query implements the interface method for testing.
func (m *MockQueryExecutor) Query(ctx context.Context, sqlQuery string) (*domain.QueryResult, error) {
	m.mu.Lock()
	m.Queries = append(m.Queries, sqlQuery)
	m.mu.Unlock()
	if m.QueryFn != nil {
		return m.QueryFn(ctx, sqlQuery)
	}
	panic("unexpected call to MockQueryExecutor.Query")
}

// Recorded returns a copy of the queries seen so far.
func (m *MockQueryExecutor) Recorded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Queries))
	copy(out, m.Queries)
	return out
}

// Result builds a QueryResult from column names and rows.
func Result(columns []string, rows ...[]interface{}) *domain.QueryResult {
	return &domain.QueryResult{Columns: columns, Rows: rows, RowCount: len(rows)}
}
