package domain

// CountMode selects what an aggregation counts.
type CountMode string

const (
	// CountRows counts rows of the aggregated table.
	CountRows CountMode = "rows"
	// CountParent counts distinct rows of an ancestor table reached through
	// foreign keys of the aggregated table.
	CountParent CountMode = "parent"
)

// CountBy is the optional counting configuration of a request. A nil
// *CountBy means row counting.
type CountBy struct {
	Mode        CountMode `json:"mode"`
	TargetTable string    `json:"target_table,omitempty"`
}

// IsParent reports whether c asks for distinct-parent counting.
func (c *CountBy) IsParent() bool {
	return c != nil && c.Mode == CountParent
}

// ColumnAggregation is the per-column statistics payload.
//
// Categories, NumericStats and Histogram are mutually exclusive and depend
// on DisplayType. Error is only set by table-wide aggregation when this
// column failed while its siblings succeeded.
type ColumnAggregation struct {
	ColumnName   string          `json:"column_name"`
	DisplayType  string          `json:"display_type"`
	TotalRows    int64           `json:"total_rows"`
	NullCount    int64           `json:"null_count"`
	UniqueCount  int64           `json:"unique_count"`
	Categories   []CategoryCount `json:"categories,omitempty"`
	NumericStats *NumericStats   `json:"numeric_stats,omitempty"`
	Histogram    []HistogramBin  `json:"histogram,omitempty"`
	MetricType   CountMode       `json:"metric_type"`
	MetricPath   []string        `json:"metric_path,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// CategoryCount is one bucket of a categorical distribution.
type CategoryCount struct {
	Value        string  `json:"value"`
	DisplayValue string  `json:"display_value"`
	Count        int64   `json:"count"`
	Percentage   float64 `json:"percentage"`
}

// NumericStats summarises a numeric column. Count is the number of
// non-null numeric values (or distinct parents holding one).
type NumericStats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"stddev"`
	Q1     float64 `json:"q1"`
	Q3     float64 `json:"q3"`
	Count  int64   `json:"count"`
}

// HistogramBin is one equal-width bin. BinEnd is inclusive for the last bin.
type HistogramBin struct {
	BinStart   float64 `json:"bin_start"`
	BinEnd     float64 `json:"bin_end"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

// SurvivalCurvePoint is one step of a Kaplan-Meier curve.
type SurvivalCurvePoint struct {
	Time     float64 `json:"time"`
	AtRisk   int64   `json:"atRisk"`
	Events   int64   `json:"events"`
	Censored int64   `json:"censored"`
	Survival float64 `json:"survival"`
}
