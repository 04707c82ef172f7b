package sqlsafe

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"cohortlens/internal/domain"
)

var (
	digitsRe   = regexp.MustCompile(`^\d+$`)
	decimalRe  = regexp.MustCompile(`^[-+]?(\d+\.?\d*|\.\d+)$`)
	exponentRe = regexp.MustCompile(`^[-+]?\d+$`)
)

// EnsurePositiveInteger accepts a Go integer type with a non-negative value,
// or a string of decimal digits. Floats (even integral ones), exponents, hex,
// signs and the NaN/Infinity/null/undefined spellings are rejected.
func EnsurePositiveInteger(value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return nonNegative(int64(v))
	case int8:
		return nonNegative(int64(v))
	case int16:
		return nonNegative(int64(v))
	case int32:
		return nonNegative(int64(v))
	case int64:
		return nonNegative(v)
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint:
		if uint64(v) > math.MaxInt64 {
			return 0, domain.ErrValidation("integer %d is out of range", v)
		}
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, domain.ErrValidation("integer %d is out of range", v)
		}
		return int64(v), nil
	case string:
		return parseDigits(v)
	case json.Number:
		return parseDigits(string(v))
	case nil:
		return 0, domain.ErrValidation("expected a non-negative integer, got null")
	default:
		return 0, domain.ErrValidation("expected a non-negative integer, got %T", value)
	}
}

func nonNegative(n int64) (int64, error) {
	if n < 0 {
		return 0, domain.ErrValidation("expected a non-negative integer, got %d", n)
	}
	return n, nil
}

func parseDigits(s string) (int64, error) {
	if !digitsRe.MatchString(s) {
		return 0, domain.ErrValidation("expected a non-negative integer, got %q", s)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, domain.ErrValidation("integer %q is out of range", s)
	}
	return n, nil
}

// EscapeStringValue escapes a string for use inside an E'...' literal.
// Backslashes are escaped first so the backslashes introduced for quotes are
// not doubled again.
func EscapeStringValue(value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", domain.ErrValidation("expected a string value, got %T", value)
	}
	escaped := strings.ReplaceAll(s, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `'`, `\'`)
	return escaped, nil
}

// QuoteString renders s as a DuckDB escape-string literal.
func QuoteString(s string) string {
	escaped, _ := EscapeStringValue(s)
	return "E'" + escaped + "'"
}

// FiniteNumber validates a numeric filter operand. Go numeric types,
// json.Number and plain decimal strings are accepted; NaN, infinities, hex,
// booleans and nil are rejected.
func FiniteNumber(value any) (float64, error) {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int8:
		f = float64(v)
	case int16:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint:
		f = float64(v)
	case uint8:
		f = float64(v)
	case uint16:
		f = float64(v)
	case uint32:
		f = float64(v)
	case uint64:
		f = float64(v)
	case json.Number:
		parsed, err := parseDecimal(string(v))
		if err != nil {
			return 0, err
		}
		f = parsed
	case string:
		parsed, err := parseDecimal(strings.TrimSpace(v))
		if err != nil {
			return 0, err
		}
		f = parsed
	case nil:
		return 0, domain.ErrValidation("numeric value is required")
	default:
		return 0, domain.ErrValidation("expected a numeric value, got %T", value)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, domain.ErrValidation("numeric value must be finite")
	}
	return f, nil
}

// parseDecimal accepts plain decimal notation with an optional exponent, as
// produced by JSON encoders.
func parseDecimal(s string) (float64, error) {
	mantissa, exp, hasExp := strings.Cut(strings.ToLower(s), "e")
	if !decimalRe.MatchString(mantissa) || (hasExp && !exponentRe.MatchString(exp)) {
		return 0, domain.ErrValidation("invalid numeric value %q", s)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, domain.ErrValidation("invalid numeric value %q", s)
	}
	return f, nil
}

// FormatNumber renders a validated number as a SQL numeric literal.
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
