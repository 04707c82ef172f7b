package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"cohortlens/internal/domain"
)

// Compile-time check.
var _ domain.QueryExecutor = (*Executor)(nil)

var (
	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cohortlens_store_queries_total",
		Help: "Queries sent to the columnar store by outcome",
	}, []string{"status"})

	queryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cohortlens_store_query_duration_seconds",
		Help:    "Columnar store query latency",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 16), // 0.5ms to ~16s
	})
)

// Executor implements domain.QueryExecutor over a DuckDB *sql.DB. Each query
// runs under the request context plus an optional timeout.
type Executor struct {
	db      *sql.DB
	timeout time.Duration
	logger  *slog.Logger
}

// NewExecutor creates an Executor. A zero timeout disables the per-query limit.
func NewExecutor(db *sql.DB, timeout time.Duration, logger *slog.Logger) *Executor {
	return &Executor{db: db, timeout: timeout, logger: logger}
}

// Query runs a read-only statement and materializes its rows.
func (e *Executor) Query(ctx context.Context, sqlQuery string) (*domain.QueryResult, error) {
	if err := EnsureReadOnly(sqlQuery); err != nil {
		return nil, err
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	rows, err := e.db.QueryContext(ctx, sqlQuery)
	if err != nil {
		e.record(start, err)
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	result, err := scanRows(rows)
	e.record(start, err)
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return result, nil
}

func (e *Executor) record(start time.Time, err error) {
	elapsed := time.Since(start)
	queryDuration.Observe(elapsed.Seconds())
	if err != nil {
		queriesTotal.WithLabelValues("error").Inc()
		e.logger.Warn("store query failed", "duration_ms", elapsed.Milliseconds(), "error", err)
		return
	}
	queriesTotal.WithLabelValues("ok").Inc()
}

func scanRows(rows *sql.Rows) (*domain.QueryResult, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var resultRows [][]interface{}
	for rows.Next() {
		vals := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		// Byte slices become strings so results are comparable and JSON friendly.
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		resultRows = append(resultRows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &domain.QueryResult{
		Columns:  cols,
		Rows:     resultRows,
		RowCount: len(resultRows),
	}, nil
}
