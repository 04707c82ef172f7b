package aggregation

import (
	"context"
	"fmt"
	"time"

	"cohortlens/internal/domain"
	"cohortlens/internal/sqlsafe"
)

// GetColumnAggregation computes the statistics of a single column.
func (s *Service) GetColumnAggregation(ctx context.Context, req ColumnRequest) (result *domain.ColumnAggregation, err error) {
	start := time.Now()
	defer func() { observe("column", time.Since(start).Seconds(), err) }()

	sc, err := s.prepare(ctx, req.DatasetID, req.Table, req.Filter, req.CountBy)
	if err != nil {
		return nil, err
	}
	meta, _, err := sc.column(req.Column)
	if err != nil {
		return nil, err
	}
	displayType := req.DisplayType
	if displayType == "" {
		displayType = meta.DisplayType
	}
	return s.aggregateColumn(ctx, sc, meta.Name, displayType, nil)
}

// aggregateColumn runs the basic statistics query and then the display-type
// specific queries. A known filtered total may be passed in to skip
// recounting it.
func (s *Service) aggregateColumn(ctx context.Context, sc *scope, column, displayType string, knownTotal *int64) (*domain.ColumnAggregation, error) {
	_, col, err := sc.column(column)
	if err != nil {
		return nil, err
	}

	agg := &domain.ColumnAggregation{
		ColumnName:  column,
		DisplayType: displayType,
		MetricType:  sc.metric.Mode,
		MetricPath:  sc.metric.MetricPath(),
	}

	selects := []string{
		sc.metric.CountExpr(blankCondition(col)) + " AS null_count",
		fmt.Sprintf("approx_count_distinct(%s) AS unique_count", col),
	}
	if knownTotal == nil {
		selects = append(selects, sc.metric.CountExpr("")+" AS total_rows")
	}
	res, err := s.query(ctx, sc.selectFrom(selects...))
	if err != nil {
		return nil, fmt.Errorf("basic stats for %q: %w", column, err)
	}
	if knownTotal != nil {
		agg.TotalRows = *knownTotal
	} else if agg.TotalRows, err = res.Int64(0, "total_rows"); err != nil {
		return nil, err
	}
	if agg.NullCount, err = res.Int64(0, "null_count"); err != nil {
		return nil, err
	}
	if agg.UniqueCount, err = res.Int64(0, "unique_count"); err != nil {
		return nil, err
	}

	switch displayType {
	case domain.DisplayCategorical, domain.DisplayID:
		agg.Categories, err = s.categories(ctx, sc, col, agg.TotalRows, s.opts.CategoryLimit)
	case domain.DisplayGeographic:
		agg.Categories, err = s.categories(ctx, sc, col, agg.TotalRows, s.opts.GeographicCategoryLimit)
	case domain.DisplayNumeric:
		agg.NumericStats, agg.Histogram, err = s.numeric(ctx, sc, col)
	}
	if err != nil {
		return nil, fmt.Errorf("%s stats for %q: %w", displayType, column, err)
	}
	return agg, nil
}

// blankCondition matches NULL values and values that are empty after trim.
func blankCondition(col string) string {
	return fmt.Sprintf("%s IS NULL OR trim(CAST(%s AS VARCHAR)) = ''", col, col)
}

// categoryExpressions returns the normalized value and display value of a
// column. Both map blanks to one bucket and "N/A" case-insensitively to
// another, using the same sentinels the filter compiler accepts back.
func categoryExpressions(col string) (value, display string) {
	text := fmt.Sprintf("trim(CAST(%s AS VARCHAR))", col)
	blank := blankCondition(col)
	na := fmt.Sprintf("upper(%s) = 'N/A'", text)
	value = fmt.Sprintf("CASE WHEN %s THEN %s WHEN %s THEN %s ELSE %s END",
		blank, sqlsafe.QuoteString(domain.EmptyValue), na, sqlsafe.QuoteString(domain.NAValue), text)
	display = fmt.Sprintf("CASE WHEN %s THEN 'Empty' WHEN %s THEN 'N/A' ELSE %s END", blank, na, text)
	return value, display
}

func (s *Service) categories(ctx context.Context, sc *scope, col string, total int64, limit int) ([]domain.CategoryCount, error) {
	value, display := categoryExpressions(col)
	q := sc.selectFrom(
		value+" AS value",
		display+" AS display_value",
		sc.metric.CountExpr("")+" AS category_count",
	).
		GroupBy("1", "2").
		OrderBy("3 DESC", "1 ASC").
		Limit(uint64(limit))

	res, err := s.query(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]domain.CategoryCount, 0, len(res.Rows))
	for i := range res.Rows {
		n, err := res.Int64(i, "category_count")
		if err != nil {
			return nil, err
		}
		out = append(out, domain.CategoryCount{
			Value:        res.String(i, "value"),
			DisplayValue: res.String(i, "display_value"),
			Count:        n,
			Percentage:   percentage(n, total),
		})
	}
	return out, nil
}

// numericValue coerces a column to DOUBLE, yielding NULL for non-numeric text.
func numericValue(col string) string {
	return fmt.Sprintf("TRY_CAST(%s AS DOUBLE)", col)
}
