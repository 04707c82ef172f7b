package aggregation

import (
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cohortlens/internal/domain"
	"cohortlens/internal/filter"
	"cohortlens/internal/relgraph"
	"cohortlens/internal/testutil"
)

func buildWhere(t *testing.T, root string, countBy *domain.CountBy, f domain.Filter) (string, error) {
	t.Helper()
	tables := testutil.ClinicalTables()
	g := relgraph.New(tables)
	mc, err := ResolveMetricContext(g, root, countBy)
	require.NoError(t, err)
	logger := slog.New(slog.DiscardHandler)
	return newWhereBuilder(filter.NewCompiler(tables, logger), g, mc, logger).Build(f)
}

func cond(table, column string, op domain.Operator, value any) *domain.Condition {
	return &domain.Condition{TableName: table, Column: column, Operator: op, Value: value}
}

const patientsFemale = `SELECT "patient_id" FROM "main"."patients" WHERE "sex" = E'F' AND "patient_id" IS NOT NULL`

func TestWhere_LocalCondition(t *testing.T) {
	got, err := buildWhere(t, "samples", nil, cond("", "tissue", domain.OpEq, "Lung"))
	require.NoError(t, err)
	assert.Equal(t, `"base"."tissue" = E'Lung'`, got)

	got, err = buildWhere(t, "samples", nil, cond("samples", "tissue", domain.OpEq, "Lung"))
	require.NoError(t, err)
	assert.Equal(t, `"base"."tissue" = E'Lung'`, got)
}

func TestWhere_ForwardSingleHop(t *testing.T) {
	got, err := buildWhere(t, "samples", nil, cond("patients", "sex", domain.OpEq, "F"))
	require.NoError(t, err)
	assert.Equal(t, `"base"."patient_id" IN (`+patientsFemale+`)`, got)
}

func TestWhere_BackwardSingleHop(t *testing.T) {
	got, err := buildWhere(t, "patients", nil, cond("samples", "tissue", domain.OpEq, "Lung"))
	require.NoError(t, err)
	assert.Equal(t,
		`"base"."patient_id" IN (SELECT "patient_id" FROM "main"."samples" WHERE "tissue" = E'Lung' AND "patient_id" IS NOT NULL)`,
		got)
}

func TestWhere_MultiHopNestsSubqueries(t *testing.T) {
	got, err := buildWhere(t, "mutations", nil, cond("patients", "sex", domain.OpEq, "F"))
	require.NoError(t, err)
	assert.Equal(t,
		`"base"."sample_id" IN (SELECT "sample_id" FROM "main"."samples" WHERE "patient_id" IN (`+
			patientsFemale+`) AND "sample_id" IS NOT NULL)`,
		got)
	assert.Equal(t, 2, strings.Count(got, " IN (SELECT"))
}

func TestWhere_NegatedForeignFilterGuardsNulls(t *testing.T) {
	got, err := buildWhere(t, "samples", nil, &domain.Not{Filter: cond("patients", "sex", domain.OpEq, "F")})
	require.NoError(t, err)
	assert.Equal(t,
		`("base"."patient_id" NOT IN (`+patientsFemale+`) OR "base"."patient_id" IS NULL)`,
		got)
}

func TestWhere_SameTableSubtreeSharesSubquery(t *testing.T) {
	f := &domain.And{Filters: []domain.Filter{
		cond("patients", "sex", domain.OpEq, "F"),
		cond("patients", "age", domain.OpGte, json.Number("50")),
	}}
	got, err := buildWhere(t, "samples", nil, f)
	require.NoError(t, err)
	assert.Equal(t,
		`"base"."patient_id" IN (SELECT "patient_id" FROM "main"."patients" WHERE ("sex" = E'F' AND "age" >= 50) AND "patient_id" IS NOT NULL)`,
		got)
}

func TestWhere_MixedTreeAppliesDeMorgan(t *testing.T) {
	f := &domain.Not{Filter: &domain.And{Filters: []domain.Filter{
		cond("", "tissue", domain.OpEq, "Lung"),
		cond("patients", "sex", domain.OpEq, "F"),
	}}}
	got, err := buildWhere(t, "samples", nil, f)
	require.NoError(t, err)
	assert.Equal(t,
		`(NOT ("base"."tissue" = E'Lung') OR ("base"."patient_id" NOT IN (`+patientsFemale+`) OR "base"."patient_id" IS NULL))`,
		got)
}

func TestWhere_MixedOr(t *testing.T) {
	f := &domain.Or{Filters: []domain.Filter{
		cond("", "sex", domain.OpEq, "M"),
		cond("treatments", "drug", domain.OpIn, []any{"cisplatin"}),
	}}
	got, err := buildWhere(t, "patients", nil, f)
	require.NoError(t, err)
	assert.Equal(t,
		`("base"."sex" = E'M' OR "base"."patient_id" IN (SELECT "patient_id" FROM "main"."treatments" WHERE "drug" IN (E'cisplatin') AND "patient_id" IS NOT NULL))`,
		got)
}

func TestWhere_UnrelatedTableIsDropped(t *testing.T) {
	f := &domain.And{Filters: []domain.Filter{
		cond("", "tissue", domain.OpEq, "Lung"),
		cond("audit_log", "entry", domain.OpEq, "x"),
	}}
	got, err := buildWhere(t, "samples", nil, f)
	require.NoError(t, err)
	assert.Equal(t, `("base"."tissue" = E'Lung')`, got)
}

func TestWhere_JoinedAncestorCompilesAgainstAlias(t *testing.T) {
	countBy := &domain.CountBy{Mode: domain.CountParent, TargetTable: "patients"}
	got, err := buildWhere(t, "samples", countBy, cond("patients", "sex", domain.OpEq, "F"))
	require.NoError(t, err)
	assert.Equal(t, `"ancestor_0"."sex" = E'F'`, got)
}

func TestWhere_ValueErrorsAreFatal(t *testing.T) {
	_, err := buildWhere(t, "samples", nil, cond("patients", "age", domain.OpBetween, []any{1}))
	require.Error(t, err)

	_, err = buildWhere(t, "samples", nil, cond("", "purity", domain.OpTemporalOverlaps, nil))
	require.Error(t, err)
}

func TestWhere_EmptyFilters(t *testing.T) {
	for _, f := range []domain.Filter{nil, &domain.And{}, &domain.Or{}, &domain.Not{Filter: &domain.Or{}}} {
		got, err := buildWhere(t, "samples", nil, f)
		require.NoError(t, err)
		assert.Empty(t, got)
	}
}

func TestWhere_MalformedForeignLeafIsDropped(t *testing.T) {
	got, err := buildWhere(t, "samples", nil, cond("patients", "weight", domain.OpGt, 1))
	require.NoError(t, err)
	assert.Empty(t, got)
}
