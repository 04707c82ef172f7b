package aggregation

import (
	"fmt"

	"cohortlens/internal/domain"
	"cohortlens/internal/relgraph"
	"cohortlens/internal/sqlsafe"
)

// RootAlias is the alias of the aggregated table in every generated query.
const RootAlias = "base"

// MetricJoin is one LEFT JOIN of a parent-count chain.
type MetricJoin struct {
	Alias          string `json:"alias"`
	Table          string `json:"table"`
	QualifiedTable string `json:"qualified_table"`
	OnCondition    string `json:"on"`
}

// MetricContext decides what a count means for one request: rows of the
// aggregated table, or distinct rows of an ancestor reached through foreign
// keys.
type MetricContext struct {
	Mode         domain.CountMode
	RootTable    string
	ParentTable  string
	ParentColumn string
	Joins        []MetricJoin
	PathSegments []relgraph.Edge
	// AncestorExpression is the ancestor key counted in parent mode.
	AncestorExpression string

	aliases aliasTable
}

// aliasTable is an ordered table->alias arena. Both table names and aliases
// are unique within it.
type aliasTable struct {
	entries []aliasEntry
	byTable map[string]int
	byAlias map[string]int
}

type aliasEntry struct {
	Table string
	Alias string
}

func (a *aliasTable) add(table, alias string) error {
	if a.byTable == nil {
		a.byTable = make(map[string]int)
		a.byAlias = make(map[string]int)
	}
	if _, ok := a.byTable[table]; ok {
		return fmt.Errorf("table %q is already joined", table)
	}
	if _, ok := a.byAlias[alias]; ok {
		return fmt.Errorf("alias %q is already in use", alias)
	}
	a.entries = append(a.entries, aliasEntry{Table: table, Alias: alias})
	a.byTable[table] = len(a.entries) - 1
	a.byAlias[alias] = len(a.entries) - 1
	return nil
}

func (a *aliasTable) lookup(table string) (string, bool) {
	i, ok := a.byTable[table]
	if !ok {
		return "", false
	}
	return a.entries[i].Alias, true
}

// ResolveMetricContext builds the metric context of a request rooted at
// rootTable. A nil countBy, or rows mode, yields the trivial context.
func ResolveMetricContext(g *relgraph.Graph, rootTable string, countBy *domain.CountBy) (*MetricContext, error) {
	mc := &MetricContext{Mode: domain.CountRows, RootTable: rootTable}
	if err := mc.aliases.add(rootTable, RootAlias); err != nil {
		return nil, err
	}

	if countBy != nil && countBy.Mode != "" && countBy.Mode != domain.CountRows && countBy.Mode != domain.CountParent {
		return nil, domain.ErrValidation("unknown count_by mode %q", countBy.Mode)
	}
	if !countBy.IsParent() {
		return mc, nil
	}

	target := countBy.TargetTable
	if target == "" {
		return nil, domain.ErrValidation("count_by: target_table is required for parent counting")
	}
	if _, ok := g.Table(target); !ok {
		return nil, domain.ErrNotFound("count_by: table %q not found", target)
	}
	path := g.FindPath(rootTable, target)
	if path == nil {
		return nil, domain.ErrRelationship(rootTable, target, "no relationship path from %q to %q", rootTable, target)
	}
	if relgraph.HasBackwardHop(path) {
		return nil, domain.ErrRelationship(rootTable, target,
			"cannot count %q from %q: the path runs against a foreign key", target, rootTable)
	}

	prevAlias := RootAlias
	for i, e := range path {
		alias := fmt.Sprintf("ancestor_%d", i)
		tbl, _ := g.Table(e.To)
		qualified, err := sqlsafe.QuoteQualifiedName(storageName(tbl))
		if err != nil {
			return nil, fmt.Errorf("table %q: %w", e.To, err)
		}
		left, err := sqlsafe.QualifiedColumn(alias, e.ToColumn())
		if err != nil {
			return nil, fmt.Errorf("relationship %s -> %s: %w", e.From, e.To, err)
		}
		right, err := sqlsafe.QualifiedColumn(prevAlias, e.FromColumn())
		if err != nil {
			return nil, fmt.Errorf("relationship %s -> %s: %w", e.From, e.To, err)
		}
		if err := mc.aliases.add(e.To, alias); err != nil {
			return nil, domain.ErrRelationship(rootTable, target, "join chain revisits a table: %v", err)
		}
		mc.Joins = append(mc.Joins, MetricJoin{
			Alias:          alias,
			Table:          e.To,
			QualifiedTable: qualified,
			OnCondition:    left + " = " + right,
		})
		prevAlias = alias
	}

	last := path[len(path)-1]
	anc, err := sqlsafe.QualifiedColumn(prevAlias, last.ToColumn())
	if err != nil {
		return nil, err
	}

	mc.Mode = domain.CountParent
	mc.ParentTable = target
	mc.ParentColumn = last.ToColumn()
	mc.PathSegments = path
	mc.AncestorExpression = anc
	return mc, nil
}

// IsParent reports whether the context counts distinct ancestors.
func (m *MetricContext) IsParent() bool {
	return m.Mode == domain.CountParent
}

// CountExpr returns the counting aggregate, restricted to rows matching cond
// when cond is not empty.
func (m *MetricContext) CountExpr(cond string) string {
	expr := "count(*)"
	if m.IsParent() {
		expr = "count(DISTINCT " + m.AncestorExpression + ")"
	}
	if cond == "" {
		return expr
	}
	return expr + " FILTER (WHERE " + cond + ")"
}

// AliasFor returns the SQL alias of a table joined by this context.
func (m *MetricContext) AliasFor(table string) (string, bool) {
	return m.aliases.lookup(table)
}

// Aliases returns a table->alias copy of every table in scope.
func (m *MetricContext) Aliases() map[string]string {
	out := make(map[string]string, len(m.aliases.entries))
	for _, e := range m.aliases.entries {
		out[e.Table] = e.Alias
	}
	return out
}

// MetricPath lists the tables walked from the root to the counted ancestor.
// It is nil in rows mode.
func (m *MetricContext) MetricPath() []string {
	return relgraph.PathTables(m.PathSegments)
}

func storageName(t domain.TableMetadata) string {
	if t.QualifiedStorageName != "" {
		return t.QualifiedStorageName
	}
	return t.TableName
}
