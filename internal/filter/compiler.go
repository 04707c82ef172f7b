// Package filter compiles filter expression trees into DuckDB boolean
// conditions.
//
// The empty string is the neutral condition: it means "no constraint" and is
// dropped by every combinator. Malformed leaves (unknown column, missing
// operator) compile to the neutral condition; invalid values are errors.
package filter

import (
	"fmt"
	"log/slog"
	"strings"

	"cohortlens/internal/domain"
	"cohortlens/internal/sqlsafe"
)

// AlwaysFalse is the condition emitted for an empty membership set.
const AlwaysFalse = "1 = 0"

// Target names the table a condition is compiled against.
type Target struct {
	// Table whose columns the leaf columns resolve to.
	Table string
	// Alias qualifies column references. Empty means unqualified, as used
	// inside membership subqueries.
	Alias string
	// Aliases maps other tables in scope to their SQL aliases. Temporal
	// reference columns may live on any of them.
	Aliases map[string]string
}

// Compiler compiles filters against a fixed set of known columns.
type Compiler struct {
	columns map[string][]string
	logger  *slog.Logger
}

// NewCompiler creates a compiler that accepts only the columns declared in
// tables.
func NewCompiler(tables []domain.TableMetadata, logger *slog.Logger) *Compiler {
	cols := make(map[string][]string, len(tables))
	for _, t := range tables {
		cols[t.TableName] = t.ColumnNames()
	}
	return &Compiler{columns: cols, logger: logger}
}

// Compile compiles a whole tree against target. Every leaf is resolved
// against target.Table regardless of its TableName; routing leaves to other
// tables is the caller's job.
func (c *Compiler) Compile(f domain.Filter, target Target) (string, error) {
	switch n := f.(type) {
	case nil:
		return "", nil
	case *domain.Condition:
		return c.CompileCondition(n, target)
	case *domain.And:
		parts, err := c.compileAll(n.Filters, target)
		if err != nil {
			return "", err
		}
		return And(parts...), nil
	case *domain.Or:
		parts, err := c.compileAll(n.Filters, target)
		if err != nil {
			return "", err
		}
		return Or(parts...), nil
	case *domain.Not:
		inner, err := c.Compile(n.Filter, target)
		if err != nil {
			return "", err
		}
		return Not(inner), nil
	default:
		return "", fmt.Errorf("unexpected filter node %T", f)
	}
}

func (c *Compiler) compileAll(filters []domain.Filter, target Target) ([]string, error) {
	parts := make([]string, 0, len(filters))
	for _, child := range filters {
		s, err := c.Compile(child, target)
		if err != nil {
			return nil, err
		}
		parts = append(parts, s)
	}
	return parts, nil
}

// CompileCondition compiles a single leaf.
func (c *Compiler) CompileCondition(cond *domain.Condition, target Target) (string, error) {
	if cond == nil {
		return "", nil
	}
	if cond.Operator == "" || cond.Column == "" {
		c.logger.Debug("dropping filter without column or operator", "table", target.Table, "column", cond.Column)
		return "", nil
	}

	col, ok := c.columnRef(target.Table, target.Alias, cond.Column)
	if !ok {
		c.logger.Debug("dropping filter on unknown column", "table", target.Table, "column", cond.Column)
		return "", nil
	}

	switch cond.Operator {
	case domain.OpEq:
		return compileEq(col, cond.Value)
	case domain.OpIn:
		return compileIn(col, cond.Value)
	case domain.OpGt:
		return compileComparison(col, ">", cond)
	case domain.OpLt:
		return compileComparison(col, "<", cond)
	case domain.OpGte:
		return compileComparison(col, ">=", cond)
	case domain.OpLte:
		return compileComparison(col, "<=", cond)
	case domain.OpBetween:
		return compileBetween(col, cond.Value)
	case domain.OpTemporalBefore, domain.OpTemporalAfter, domain.OpTemporalDuration:
		return c.compileTemporal(col, cond, target)
	case domain.OpTemporalWithin, domain.OpTemporalOverlaps:
		return "", domain.ErrValidation("operator %q not implemented", cond.Operator)
	default:
		c.logger.Debug("dropping filter with unknown operator", "operator", string(cond.Operator), "column", cond.Column)
		return "", nil
	}
}

// columnRef validates column against the known columns of table and renders
// it, alias-qualified when alias is set.
func (c *Compiler) columnRef(table, alias, column string) (string, bool) {
	name, err := sqlsafe.ValidateIdentifier(column, c.columns[table])
	if err != nil {
		return "", false
	}
	ref, err := sqlsafe.QualifiedColumn(alias, name)
	if err != nil {
		return "", false
	}
	return ref, true
}

func compileEq(col string, value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return emptyCondition(col), nil
	case string:
		switch v {
		case domain.EmptyValue, "":
			return emptyCondition(col), nil
		case domain.NAValue:
			return naCondition(col), nil
		}
		return col + " = " + sqlsafe.QuoteString(v), nil
	case bool:
		return "", domain.ErrValidation("eq: unsupported boolean value")
	default:
		n, err := sqlsafe.FiniteNumber(v)
		if err != nil {
			return "", fmt.Errorf("eq: %w", err)
		}
		return col + " = " + sqlsafe.FormatNumber(n), nil
	}
}

// emptyCondition matches NULL and blank values, the same bucket the
// categorical aggregation labels (Empty).
func emptyCondition(col string) string {
	return fmt.Sprintf("(%s IS NULL OR trim(CAST(%s AS VARCHAR)) = '')", col, col)
}

func naCondition(col string) string {
	return fmt.Sprintf("upper(trim(CAST(%s AS VARCHAR))) = 'N/A'", col)
}

func compileIn(col string, value any) (string, error) {
	var items []any
	switch v := value.(type) {
	case []any:
		items = v
	case []string:
		for _, s := range v {
			items = append(items, s)
		}
	default:
		items = []any{v}
	}

	var (
		texts     []string
		numbers   []string
		wantEmpty bool
		wantNA    bool
	)
	for _, item := range items {
		switch v := item.(type) {
		case nil:
			wantEmpty = true
		case string:
			switch v {
			case domain.EmptyValue, "":
				wantEmpty = true
			case domain.NAValue:
				wantNA = true
			default:
				texts = append(texts, v)
			}
		case bool:
			return "", domain.ErrValidation("in: unsupported boolean value")
		default:
			n, err := sqlsafe.FiniteNumber(v)
			if err != nil {
				return "", fmt.Errorf("in: %w", err)
			}
			numbers = append(numbers, sqlsafe.FormatNumber(n))
		}
	}

	var parts []string
	if m := membership(col, texts, numbers); m != "" {
		parts = append(parts, m)
	}
	if wantNA {
		parts = append(parts, naCondition(col))
	}
	if wantEmpty {
		parts = append(parts, emptyCondition(col))
	}

	switch len(parts) {
	case 0:
		return AlwaysFalse, nil
	case 1:
		return parts[0], nil
	default:
		return Or(parts...), nil
	}
}

// membership renders col IN (...). A list mixing text and numbers compares
// as text so DuckDB never casts a text column to a number.
func membership(col string, texts, numbers []string) string {
	if len(texts) == 0 && len(numbers) == 0 {
		return ""
	}
	if len(texts) == 0 {
		return fmt.Sprintf("%s IN (%s)", col, strings.Join(numbers, ", "))
	}
	if len(numbers) > 0 {
		col = fmt.Sprintf("CAST(%s AS VARCHAR)", col)
	}
	literals := make([]string, 0, len(texts)+len(numbers))
	for _, v := range append(texts, numbers...) {
		literals = append(literals, sqlsafe.QuoteString(v))
	}
	return fmt.Sprintf("%s IN (%s)", col, strings.Join(literals, ", "))
}

func compileComparison(col, op string, cond *domain.Condition) (string, error) {
	n, err := sqlsafe.FiniteNumber(cond.Value)
	if err != nil {
		return "", fmt.Errorf("%s: %w", cond.Operator, err)
	}
	return fmt.Sprintf("%s %s %s", col, op, sqlsafe.FormatNumber(n)), nil
}

func compileBetween(col string, value any) (string, error) {
	items, ok := value.([]any)
	if !ok || len(items) != 2 {
		return "", domain.ErrValidation("between: expected exactly two numeric values")
	}
	lo, err := sqlsafe.FiniteNumber(items[0])
	if err != nil {
		return "", fmt.Errorf("between: %w", err)
	}
	hi, err := sqlsafe.FiniteNumber(items[1])
	if err != nil {
		return "", fmt.Errorf("between: %w", err)
	}
	return fmt.Sprintf("%s BETWEEN %s AND %s", col, sqlsafe.FormatNumber(lo), sqlsafe.FormatNumber(hi)), nil
}

func (c *Compiler) compileTemporal(col string, cond *domain.Condition, target Target) (string, error) {
	if cond.TemporalReferenceColumn == "" {
		return "", domain.ErrValidation("%s: temporal_reference_column is required", cond.Operator)
	}

	refTable, refAlias := target.Table, target.Alias
	if cond.TemporalReferenceTable != "" && cond.TemporalReferenceTable != target.Table {
		alias, ok := target.Aliases[cond.TemporalReferenceTable]
		if !ok || target.Alias == "" {
			c.logger.Warn("dropping temporal filter: reference table is not joined",
				"table", target.Table, "reference_table", cond.TemporalReferenceTable)
			return "", nil
		}
		refTable, refAlias = cond.TemporalReferenceTable, alias
	}
	ref, ok := c.columnRef(refTable, refAlias, cond.TemporalReferenceColumn)
	if !ok {
		c.logger.Debug("dropping temporal filter on unknown reference column",
			"table", refTable, "column", cond.TemporalReferenceColumn)
		return "", nil
	}

	guard := fmt.Sprintf("%s IS NOT NULL AND %s IS NOT NULL", col, ref)
	switch cond.Operator {
	case domain.OpTemporalBefore:
		return fmt.Sprintf("(%s AND %s < %s)", guard, col, ref), nil
	case domain.OpTemporalAfter:
		return fmt.Sprintf("(%s AND %s > %s)", guard, col, ref), nil
	default:
		threshold, err := sqlsafe.FiniteNumber(cond.Value)
		if err != nil {
			return "", fmt.Errorf("%s: %w", cond.Operator, err)
		}
		return fmt.Sprintf("(%s AND (%s - %s) >= %s)", guard, ref, col, sqlsafe.FormatNumber(threshold)), nil
	}
}
