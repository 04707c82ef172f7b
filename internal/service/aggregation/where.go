package aggregation

import (
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"

	"cohortlens/internal/domain"
	"cohortlens/internal/filter"
	"cohortlens/internal/relgraph"
	"cohortlens/internal/sqlsafe"
)

// whereBuilder compiles a request filter into the WHERE clause of a query
// rooted at the aggregated table.
//
// Leaves on the aggregated table, or on a table the metric context already
// joins, compile against that table's alias. Anything else becomes a chain of
// IN subqueries following the relationship path to the leaf's table.
type whereBuilder struct {
	compiler *filter.Compiler
	graph    *relgraph.Graph
	table    string
	aliases  map[string]string
	logger   *slog.Logger
}

func newWhereBuilder(compiler *filter.Compiler, g *relgraph.Graph, mc *MetricContext, logger *slog.Logger) *whereBuilder {
	return &whereBuilder{
		compiler: compiler,
		graph:    g,
		table:    mc.RootTable,
		aliases:  mc.Aliases(),
		logger:   logger,
	}
}

// Build returns the WHERE condition for f, or "" when f constrains nothing.
func (b *whereBuilder) Build(f domain.Filter) (string, error) {
	return b.node(f, false)
}

func (b *whereBuilder) node(f domain.Filter, negated bool) (string, error) {
	if f == nil {
		return "", nil
	}

	if !b.hasForeign(f) {
		s, err := b.local(f)
		if err != nil {
			return "", err
		}
		if negated {
			return filter.Not(s), nil
		}
		return s, nil
	}

	if n, ok := f.(*domain.Not); ok {
		return b.node(n.Filter, !negated)
	}
	if table, ok := b.singleTable(f); ok {
		return b.membership(f, table, negated)
	}

	// Mixed subtree: push the negation down with De Morgan so each foreign
	// fragment can carry its own NOT IN guard.
	var children []domain.Filter
	conjunction := true
	switch n := f.(type) {
	case *domain.And:
		children = n.Filters
	case *domain.Or:
		children = n.Filters
		conjunction = false
	default:
		return "", fmt.Errorf("unexpected filter node %T", f)
	}
	if negated {
		conjunction = !conjunction
	}

	parts := make([]string, 0, len(children))
	for _, child := range children {
		s, err := b.node(child, negated)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	if conjunction {
		return filter.And(parts...), nil
	}
	return filter.Or(parts...), nil
}

// local compiles a subtree whose leaves are all in scope.
func (b *whereBuilder) local(f domain.Filter) (string, error) {
	switch n := f.(type) {
	case *domain.Condition:
		table := b.leafTable(n)
		return b.compiler.CompileCondition(n, filter.Target{
			Table:   table,
			Alias:   b.aliases[table],
			Aliases: b.aliases,
		})
	case *domain.And:
		parts, err := b.localAll(n.Filters)
		if err != nil {
			return "", err
		}
		return filter.And(parts...), nil
	case *domain.Or:
		parts, err := b.localAll(n.Filters)
		if err != nil {
			return "", err
		}
		return filter.Or(parts...), nil
	case *domain.Not:
		s, err := b.local(n.Filter)
		if err != nil {
			return "", err
		}
		return filter.Not(s), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("unexpected filter node %T", f)
	}
}

func (b *whereBuilder) localAll(filters []domain.Filter) ([]string, error) {
	parts := make([]string, 0, len(filters))
	for _, child := range filters {
		s, err := b.local(child)
		if err != nil {
			return nil, err
		}
		parts = append(parts, s)
	}
	return parts, nil
}

func (b *whereBuilder) leafTable(c *domain.Condition) string {
	if c.TableName == "" {
		return b.table
	}
	return c.TableName
}

func (b *whereBuilder) inScope(table string) bool {
	_, ok := b.aliases[table]
	return ok
}

func (b *whereBuilder) hasForeign(f domain.Filter) bool {
	for _, leaf := range domain.Leaves(f) {
		if !b.inScope(b.leafTable(leaf)) {
			return true
		}
	}
	return false
}

// singleTable reports whether every leaf of f targets the same out-of-scope
// table.
func (b *whereBuilder) singleTable(f domain.Filter) (string, bool) {
	leaves := domain.Leaves(f)
	if len(leaves) == 0 {
		return "", false
	}
	table := b.leafTable(leaves[0])
	if b.inScope(table) {
		return "", false
	}
	for _, leaf := range leaves[1:] {
		if b.leafTable(leaf) != table {
			return "", false
		}
	}
	return table, true
}

// membership compiles f against table inside nested IN subqueries that walk
// the relationship path back to the aggregated table.
func (b *whereBuilder) membership(f domain.Filter, table string, negated bool) (string, error) {
	path := b.graph.FindPath(b.table, table)
	if path == nil {
		b.logger.Warn("dropping filter on unrelated table", "table", b.table, "filter_table", table)
		droppedFilters.Inc()
		return "", nil
	}

	inner, err := b.compiler.Compile(f, filter.Target{Table: table})
	if err != nil {
		return "", err
	}
	if inner == "" {
		return "", nil
	}

	last := path[len(path)-1]
	sub, err := b.linkSelect(last.To, last.ToColumn(), inner)
	if err != nil {
		return "", err
	}
	for i := len(path) - 2; i >= 0; i-- {
		hop, next := path[i], path[i+1]
		link, err := sqlsafe.QualifiedColumn("", next.FromColumn())
		if err != nil {
			return "", err
		}
		sub, err = b.linkSelect(hop.To, hop.ToColumn(), fmt.Sprintf("%s IN (%s)", link, sub))
		if err != nil {
			return "", err
		}
	}

	col, err := sqlsafe.QualifiedColumn(b.aliases[b.table], path[0].FromColumn())
	if err != nil {
		return "", err
	}
	if negated {
		return fmt.Sprintf("(%s NOT IN (%s) OR %s IS NULL)", col, sub, col), nil
	}
	return fmt.Sprintf("%s IN (%s)", col, sub), nil
}

// linkSelect renders SELECT link FROM table WHERE cond AND link IS NOT NULL.
func (b *whereBuilder) linkSelect(table, linkColumn, cond string) (string, error) {
	meta, ok := b.graph.Table(table)
	if !ok {
		return "", domain.ErrNotFound("table %q not found", table)
	}
	from, err := sqlsafe.QuoteQualifiedName(storageName(meta))
	if err != nil {
		return "", err
	}
	link, err := sqlsafe.QualifiedColumn("", linkColumn)
	if err != nil {
		return "", err
	}
	query, _, err := sq.Select(link).
		From(from).
		Where(cond).
		Where(link + " IS NOT NULL").
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build subquery on %q: %w", table, err)
	}
	return query, nil
}
