package domain

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
)

// QueryResult holds the structured output of a read-only SQL query.
type QueryResult struct {
	Columns  []string
	Rows     [][]interface{}
	RowCount int
}

// Value returns the raw cell at (row, column). Unknown columns and
// out-of-range rows yield nil.
func (r *QueryResult) Value(row int, column string) interface{} {
	if r == nil || row < 0 || row >= len(r.Rows) {
		return nil
	}
	for i, c := range r.Columns {
		if c == column {
			if i < len(r.Rows[row]) {
				return r.Rows[row][i]
			}
			return nil
		}
	}
	return nil
}

// Int64 reads an integer cell; NULL reads as 0.
func (r *QueryResult) Int64(row int, column string) (int64, error) {
	v := r.Value(row, column)
	if v == nil {
		return 0, nil
	}
	n, ok := toInt64(v)
	if !ok {
		return 0, fmt.Errorf("column %q: cannot read %T as integer", column, v)
	}
	return n, nil
}

// Float64 reads a numeric cell. valid is false when the cell is NULL.
func (r *QueryResult) Float64(row int, column string) (f float64, valid bool, err error) {
	v := r.Value(row, column)
	if v == nil {
		return 0, false, nil
	}
	f, ok := toFloat64(v)
	if !ok {
		return 0, false, fmt.Errorf("column %q: cannot read %T as number", column, v)
	}
	return f, true, nil
}

// String reads a text cell; NULL reads as "".
func (r *QueryResult) String(row int, column string) string {
	switch v := r.Value(row, column).(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

type float64er interface {
	Float64() float64
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		return int64(n), true
	case float32:
		return int64(n), true
	case *big.Int:
		if n == nil || !n.IsInt64() {
			return 0, false
		}
		return n.Int64(), true
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		return parsed, err == nil
	case []byte:
		parsed, err := strconv.ParseInt(string(n), 10, 64)
		return parsed, err == nil
	case float64er:
		return int64(n.Float64()), true
	default:
		return 0, false
	}
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		return parsed, err == nil
	case []byte:
		parsed, err := strconv.ParseFloat(string(n), 64)
		return parsed, err == nil
	case *big.Int:
		if n == nil {
			return 0, false
		}
		f, _ := new(big.Float).SetInt(n).Float64()
		return f, true
	case float64er:
		return n.Float64(), true
	}
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}
