package aggregation

import (
	"cohortlens/internal/domain"
)

// Options tunes the aggregation service.
type Options struct {
	// MaxConcurrentColumns bounds the per-column fan-out of table aggregation.
	MaxConcurrentColumns int
	// CategoryLimit caps the categories returned for categorical and id columns.
	CategoryLimit int
	// GeographicCategoryLimit caps the categories returned for geographic
	// columns, which usually enumerate regions.
	GeographicCategoryLimit int
	// HistogramBins is the number of equal-width histogram bins.
	HistogramBins int
}

// DefaultOptions returns the options used when a field is left at zero.
func DefaultOptions() Options {
	return Options{
		MaxConcurrentColumns:    8,
		CategoryLimit:           50,
		GeographicCategoryLimit: 100,
		HistogramBins:           20,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxConcurrentColumns <= 0 {
		o.MaxConcurrentColumns = d.MaxConcurrentColumns
	}
	if o.CategoryLimit <= 0 {
		o.CategoryLimit = d.CategoryLimit
	}
	if o.GeographicCategoryLimit <= 0 {
		o.GeographicCategoryLimit = d.GeographicCategoryLimit
	}
	if o.HistogramBins <= 0 {
		o.HistogramBins = d.HistogramBins
	}
	return o
}

// ColumnRequest asks for the statistics of one column. DisplayType falls
// back to the column's declared display type when empty.
type ColumnRequest struct {
	DatasetID   string
	Table       string
	Column      string
	DisplayType string
	Filter      domain.Filter
	CountBy     *domain.CountBy
}

// TableRequest asks for the statistics of every visible column of a table.
type TableRequest struct {
	DatasetID string
	Table     string
	Filter    domain.Filter
	CountBy   *domain.CountBy
}

// SurvivalRequest asks for a Kaplan-Meier curve over a time and a status
// column of the same table.
type SurvivalRequest struct {
	DatasetID    string
	Table        string
	TimeColumn   string
	StatusColumn string
	Filter       domain.Filter
	CountBy      *domain.CountBy
}

// Plan is the compiled form of a request, returned by Explain.
type Plan struct {
	Table      string       `json:"table"`
	MetricType string       `json:"metric_type"`
	MetricPath []string     `json:"metric_path,omitempty"`
	Joins      []MetricJoin `json:"joins,omitempty"`
	Where      string       `json:"where,omitempty"`
	CountSQL   string       `json:"count_sql"`
}
