// Package aggregation computes per-column statistics and survival curves
// over dataset tables, with optional cross-table filters and distinct-parent
// counting.
package aggregation

import (
	"context"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"

	"cohortlens/internal/domain"
	"cohortlens/internal/filter"
	"cohortlens/internal/relgraph"
	"cohortlens/internal/sqlsafe"
)

// Service answers aggregation requests. It keeps no per-request state and is
// safe for concurrent use.
type Service struct {
	metadata domain.MetadataProvider
	executor domain.QueryExecutor
	opts     Options
	logger   *slog.Logger
}

// NewService creates an aggregation service.
func NewService(metadata domain.MetadataProvider, executor domain.QueryExecutor, opts Options, logger *slog.Logger) *Service {
	return &Service{
		metadata: metadata,
		executor: executor,
		opts:     opts.withDefaults(),
		logger:   logger,
	}
}

// scope is everything a request shares across its queries: the validated
// table, the relationship graph, the metric context and the WHERE clause.
type scope struct {
	table  domain.TableMetadata
	graph  *relgraph.Graph
	metric *MetricContext
	where  string
	from   string
}

func (s *Service) prepare(ctx context.Context, datasetID, table string, f domain.Filter, countBy *domain.CountBy) (*scope, error) {
	tables, err := s.metadata.ListTables(ctx, datasetID)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.TableName
	}
	name, err := sqlsafe.ValidateIdentifier(table, names)
	if err != nil {
		return nil, domain.ErrNotFound("table %q not found in dataset %q", table, datasetID)
	}

	g := relgraph.New(tables)
	meta, _ := g.Table(name)

	mc, err := ResolveMetricContext(g, name, countBy)
	if err != nil {
		return nil, err
	}

	compiler := filter.NewCompiler(tables, s.logger)
	where, err := newWhereBuilder(compiler, g, mc, s.logger).Build(f)
	if err != nil {
		return nil, err
	}

	from, err := sqlsafe.QuoteQualifiedName(storageName(meta))
	if err != nil {
		return nil, fmt.Errorf("table %q: %w", name, err)
	}

	return &scope{
		table:  meta,
		graph:  g,
		metric: mc,
		where:  where,
		from:   from + " AS " + sqlsafe.MustEscapeIdentifier(RootAlias),
	}, nil
}

// selectFrom starts a SELECT over the aggregated table with the metric joins
// and the request filter applied.
func (sc *scope) selectFrom(columns ...string) sq.SelectBuilder {
	b := sq.Select(columns...).From(sc.from)
	for _, j := range sc.metric.Joins {
		b = b.LeftJoin(fmt.Sprintf("%s AS %s ON %s", j.QualifiedTable, sqlsafe.MustEscapeIdentifier(j.Alias), j.OnCondition))
	}
	return b.Where(sc.where)
}

// column validates a column name against the aggregated table and returns
// its alias-qualified reference.
func (sc *scope) column(name string) (domain.ColumnMetadata, string, error) {
	valid, err := sqlsafe.ValidateIdentifier(name, sc.table.ColumnNames())
	if err != nil {
		return domain.ColumnMetadata{}, "", domain.ErrNotFound("column %q not found in table %q", name, sc.table.TableName)
	}
	meta, _ := sc.table.Column(valid)
	ref, err := sqlsafe.QualifiedColumn(RootAlias, valid)
	if err != nil {
		return domain.ColumnMetadata{}, "", err
	}
	return meta, ref, nil
}

func (s *Service) query(ctx context.Context, b sq.SelectBuilder) (*domain.QueryResult, error) {
	sqlText, _, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	s.logger.Debug("aggregation query", "sql", sqlText)
	return s.executor.Query(ctx, sqlText)
}

// totalCount returns the filtered number of rows, or of distinct parents.
func (s *Service) totalCount(ctx context.Context, sc *scope) (int64, error) {
	res, err := s.query(ctx, sc.selectFrom(sc.metric.CountExpr("")+" AS total_rows"))
	if err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return res.Int64(0, "total_rows")
}

// Explain compiles a table request without running it.
func (s *Service) Explain(ctx context.Context, req TableRequest) (*Plan, error) {
	sc, err := s.prepare(ctx, req.DatasetID, req.Table, req.Filter, req.CountBy)
	if err != nil {
		return nil, err
	}
	countSQL, _, err := sc.selectFrom(sc.metric.CountExpr("") + " AS total_rows").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return &Plan{
		Table:      sc.table.TableName,
		MetricType: string(sc.metric.Mode),
		MetricPath: sc.metric.MetricPath(),
		Joins:      sc.metric.Joins,
		Where:      sc.where,
		CountSQL:   countSQL,
	}, nil
}

func percentage(count, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(count) / float64(total) * 100
}
