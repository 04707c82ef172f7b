package aggregation

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"cohortlens/internal/domain"
)

// GetTableAggregations computes the statistics of every visible column of a
// table. Shared setup runs once; columns are then aggregated concurrently.
// A failing column is reported in its Error field without affecting the
// others, and results keep the table's column order.
func (s *Service) GetTableAggregations(ctx context.Context, req TableRequest) (results []domain.ColumnAggregation, err error) {
	start := time.Now()
	defer func() { observe("table", time.Since(start).Seconds(), err) }()

	sc, err := s.prepare(ctx, req.DatasetID, req.Table, req.Filter, req.CountBy)
	if err != nil {
		return nil, err
	}
	total, err := s.totalCount(ctx, sc)
	if err != nil {
		return nil, err
	}

	columns := sc.table.VisibleColumns()
	results = make([]domain.ColumnAggregation, len(columns))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.MaxConcurrentColumns)

	for i, col := range columns {
		g.Go(func() error {
			agg, err := s.aggregateColumn(gctx, sc, col.Name, col.DisplayType, &total)
			if err != nil {
				s.logger.Warn("column aggregation failed",
					"table", sc.table.TableName, "column", col.Name, "error", err)
				columnFailures.WithLabelValues(col.DisplayType).Inc()
				results[i] = domain.ColumnAggregation{
					ColumnName:  col.Name,
					DisplayType: col.DisplayType,
					TotalRows:   total,
					MetricType:  sc.metric.Mode,
					MetricPath:  sc.metric.MetricPath(),
					Error:       err.Error(),
				}
				return nil // keep sibling columns running
			}
			results[i] = *agg
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
