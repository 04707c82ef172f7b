package aggregation

import (
	"context"
	"fmt"
	"time"

	"cohortlens/internal/domain"
	"cohortlens/internal/sqlsafe"
)

// Status words are matched against the lower-cased, trimmed status text.
// Censoring words are checked first so that "progression free" and
// "no event" read as censored.
const (
	censoredPattern = `(alive|living|censor|ongoing|free|no[ _-]?event)`
	eventPattern    = `(dead|deceased|died|death|event|progress|relapse|recurr)`
)

// eventFlag classifies a status column into 1 (event), 0 (censored) or NULL
// (ambiguous). Numeric statuses must be exactly 0 or 1.
func eventFlag(col string) string {
	num := numericValue(col)
	text := fmt.Sprintf("lower(trim(CAST(%s AS VARCHAR)))", col)
	return fmt.Sprintf("CASE"+
		" WHEN %[1]s = 1 THEN 1"+
		" WHEN %[1]s = 0 THEN 0"+
		" WHEN %[1]s IS NOT NULL THEN NULL"+
		" WHEN regexp_matches(%[2]s, %[3]s) THEN 0"+
		" WHEN regexp_matches(%[2]s, %[4]s) THEN 1"+
		" ELSE NULL END",
		num, text, sqlsafe.QuoteString(censoredPattern), sqlsafe.QuoteString(eventPattern))
}

// GetSurvivalCurve computes a Kaplan-Meier curve from a time and a status
// column. Rows with no numeric time or an ambiguous status are left out.
func (s *Service) GetSurvivalCurve(ctx context.Context, req SurvivalRequest) (points []domain.SurvivalCurvePoint, err error) {
	start := time.Now()
	defer func() { observe("survival", time.Since(start).Seconds(), err) }()

	sc, err := s.prepare(ctx, req.DatasetID, req.Table, req.Filter, req.CountBy)
	if err != nil {
		return nil, err
	}
	_, timeCol, err := sc.column(req.TimeColumn)
	if err != nil {
		return nil, err
	}
	_, statusCol, err := sc.column(req.StatusColumn)
	if err != nil {
		return nil, err
	}

	t := numericValue(timeCol)
	flag := eventFlag(statusCol)
	q := sc.selectFrom(
		t+" AS event_time",
		sc.metric.CountExpr("("+flag+") = 1")+" AS events",
		sc.metric.CountExpr("("+flag+") = 0")+" AS censored",
	).
		Where(t + " IS NOT NULL").
		Where("(" + flag + ") IS NOT NULL").
		GroupBy("1").
		OrderBy("1")

	res, err := s.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("survival groups: %w", err)
	}

	groups := make([]TimeGroup, 0, len(res.Rows))
	for i := range res.Rows {
		tv, valid, err := res.Float64(i, "event_time")
		if err != nil {
			return nil, err
		}
		if !valid {
			continue
		}
		events, err := res.Int64(i, "events")
		if err != nil {
			return nil, err
		}
		censored, err := res.Int64(i, "censored")
		if err != nil {
			return nil, err
		}
		groups = append(groups, TimeGroup{Time: tv, Events: events, Censored: censored})
	}
	return KaplanMeier(groups), nil
}
