package aggregation

import "cohortlens/internal/domain"

// TimeGroup holds the event and censoring counts observed at one time.
type TimeGroup struct {
	Time     float64
	Events   int64
	Censored int64
}

// KaplanMeier turns time groups, sorted by ascending time, into a survival
// step function. The initial risk set is everyone observed. At each time the
// survival estimate is multiplied by (1 - events/atRisk), and the risk set
// then shrinks by the events and censorings at that time.
func KaplanMeier(groups []TimeGroup) []domain.SurvivalCurvePoint {
	var atRisk int64
	for _, g := range groups {
		atRisk += g.Events + g.Censored
	}

	survival := 1.0
	out := make([]domain.SurvivalCurvePoint, 0, len(groups))
	for _, g := range groups {
		if atRisk > 0 {
			survival *= 1 - float64(g.Events)/float64(atRisk)
		}
		out = append(out, domain.SurvivalCurvePoint{
			Time:     g.Time,
			AtRisk:   atRisk,
			Events:   g.Events,
			Censored: g.Censored,
			Survival: survival,
		})
		atRisk -= g.Events + g.Censored
		if atRisk < 0 {
			atRisk = 0
		}
	}
	return out
}
