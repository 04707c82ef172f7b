package aggregation

import (
	"context"
	"fmt"

	"cohortlens/internal/domain"
	"cohortlens/internal/sqlsafe"
)

func (s *Service) numeric(ctx context.Context, sc *scope, col string) (*domain.NumericStats, []domain.HistogramBin, error) {
	v := numericValue(col)
	q := sc.selectFrom(
		fmt.Sprintf("min(%s) AS min_value", v),
		fmt.Sprintf("max(%s) AS max_value", v),
		fmt.Sprintf("avg(%s) AS mean_value", v),
		fmt.Sprintf("quantile_cont(%s, 0.5) AS median_value", v),
		fmt.Sprintf("stddev_pop(%s) AS stddev_value", v),
		fmt.Sprintf("quantile_cont(%s, 0.25) AS q1_value", v),
		fmt.Sprintf("quantile_cont(%s, 0.75) AS q3_value", v),
		sc.metric.CountExpr(v+" IS NOT NULL")+" AS value_count",
	)
	res, err := s.query(ctx, q)
	if err != nil {
		return nil, nil, err
	}

	stats := &domain.NumericStats{}
	if stats.Count, err = res.Int64(0, "value_count"); err != nil {
		return nil, nil, err
	}
	fields := []struct {
		column string
		dst    *float64
	}{
		{"min_value", &stats.Min},
		{"max_value", &stats.Max},
		{"mean_value", &stats.Mean},
		{"median_value", &stats.Median},
		{"stddev_value", &stats.StdDev},
		{"q1_value", &stats.Q1},
		{"q3_value", &stats.Q3},
	}
	hasValues := false
	for _, f := range fields {
		val, valid, err := res.Float64(0, f.column)
		if err != nil {
			return nil, nil, err
		}
		if valid {
			*f.dst = val
			if f.column == "min_value" {
				hasValues = true
			}
		}
	}
	if !hasValues || stats.Count == 0 {
		return stats, nil, nil
	}

	bins, err := s.histogram(ctx, sc, v, stats.Min, stats.Max, stats.Count)
	if err != nil {
		return nil, nil, fmt.Errorf("histogram: %w", err)
	}
	return stats, bins, nil
}

// histogram counts values into equal-width bins between min and max. The
// last bin is closed on the right so max lands in it.
func (s *Service) histogram(ctx context.Context, sc *scope, v string, minV, maxV float64, total int64) ([]domain.HistogramBin, error) {
	if minV == maxV {
		return []domain.HistogramBin{{BinStart: minV, BinEnd: maxV, Count: total, Percentage: percentage(total, total)}}, nil
	}

	bins := s.opts.HistogramBins
	width := (maxV - minV) / float64(bins)
	binExpr := fmt.Sprintf("least(CAST(floor((%s - %s) / %s) AS INTEGER), %d)",
		v, sqlsafe.FormatNumber(minV), sqlsafe.FormatNumber(width), bins-1)

	q := sc.selectFrom(
		binExpr+" AS bin",
		sc.metric.CountExpr("")+" AS bin_count",
	).
		Where(v + " IS NOT NULL").
		GroupBy("1").
		OrderBy("1")

	res, err := s.query(ctx, q)
	if err != nil {
		return nil, err
	}

	counts := make([]int64, bins)
	for i := range res.Rows {
		idx, err := res.Int64(i, "bin")
		if err != nil {
			return nil, err
		}
		n, err := res.Int64(i, "bin_count")
		if err != nil {
			return nil, err
		}
		if idx < 0 {
			idx = 0
		}
		if idx >= int64(bins) {
			idx = int64(bins) - 1
		}
		counts[idx] += n
	}
	return buildBins(minV, maxV, counts, total), nil
}

func buildBins(minV, maxV float64, counts []int64, total int64) []domain.HistogramBin {
	width := (maxV - minV) / float64(len(counts))
	out := make([]domain.HistogramBin, len(counts))
	for i, n := range counts {
		end := minV + float64(i+1)*width
		if i == len(counts)-1 {
			end = maxV
		}
		out[i] = domain.HistogramBin{
			BinStart:   minV + float64(i)*width,
			BinEnd:     end,
			Count:      n,
			Percentage: percentage(n, total),
		}
	}
	return out
}
