package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cohortlens/internal/domain"
	"cohortlens/internal/service/aggregation"
)

const clinicalManifest = "../../internal/manifest/testdata/clinical.yaml"

// importedStores seeds DuckDB, imports the clinical manifest and returns
// the store flags to pass to every command.
func importedStores(t *testing.T) []string {
	t.Helper()
	isolateEnv(t)
	stores := []string{
		"--duckdb", seedDuckDBFile(t, clinicalSeed...),
		"--meta-db", filepath.Join(t.TempDir(), "meta.sqlite"),
	}
	_, err := runCLI(t, append([]string{"import", "--verify", clinicalManifest}, stores...)...)
	require.NoError(t, err)
	return stores
}

func TestImportAndListDatasets(t *testing.T) {
	stores := importedStores(t)

	out, err := runCLI(t, append([]string{"datasets", "-o", "json"}, stores...)...)
	require.NoError(t, err)

	var rows []datasetRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "brca", rows[0].Name)
	assert.Equal(t, "brca-2024", rows[0].ID)

	t.Run("reimport_conflicts", func(t *testing.T) {
		_, err := runCLI(t, append([]string{"import", clinicalManifest}, stores...)...)
		var conflict *domain.ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, "CONFLICT", errorCode(err))
	})
}

func TestImport_VerifyRejectsMismatch(t *testing.T) {
	isolateEnv(t)
	duck := seedDuckDBFile(t, `CREATE TABLE patients (patient_id INTEGER)`)
	meta := filepath.Join(t.TempDir(), "meta.sqlite")

	out, err := runCLI(t, "import", "--verify", clinicalManifest, "--duckdb", duck, "--meta-db", meta, "-o", "json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match the store")

	var report struct {
		Valid  bool `json:"valid"`
		Issues []struct {
			Table  string `json:"table"`
			Column string `json:"column"`
		} `json:"issues"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.False(t, report.Valid)
	assert.NotEmpty(t, report.Issues)

	out, err = runCLI(t, "datasets", "--meta-db", meta, "-o", "json")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out, "nothing is imported when verification fails")
}

func TestImport_InvalidManifest(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("apiVersion: cohortlens/v1\nkind: Dataset\ntables: []\n"), 0o600))

	_, err := runCLI(t, "import", path, "--meta-db", filepath.Join(t.TempDir(), "meta.sqlite"))
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestAggregateColumn(t *testing.T) {
	stores := importedStores(t)

	t.Run("categorical_table", func(t *testing.T) {
		out, err := runCLI(t, append([]string{"aggregate", "column", "brca", "patients", "sex"}, stores...)...)
		require.NoError(t, err)
		assert.Contains(t, out, "Column:  sex (categorical)")
		assert.Contains(t, out, "Total:   4  Nulls: 1")
		assert.Contains(t, out, "50.0%")
		assert.Contains(t, out, "Empty")
	})

	t.Run("parent_count_json", func(t *testing.T) {
		out, err := runCLI(t, append([]string{"aggregate", "column", "brca", "samples", "tissue",
			"--count-by", "patients", "-o", "json"}, stores...)...)
		require.NoError(t, err)

		var agg domain.ColumnAggregation
		require.NoError(t, json.Unmarshal([]byte(out), &agg))
		assert.Equal(t, domain.CountParent, agg.MetricType)
		assert.Equal(t, []string{"samples", "patients"}, agg.MetricPath)
		assert.Equal(t, int64(3), agg.TotalRows)
	})

	t.Run("cross_table_filter", func(t *testing.T) {
		out, err := runCLI(t, append([]string{"aggregate", "column", "brca", "samples", "tissue", "-o", "json",
			"--filter", `{"tableName": "patients", "column": "sex", "operator": "eq", "value": "F"}`}, stores...)...)
		require.NoError(t, err)

		var agg domain.ColumnAggregation
		require.NoError(t, json.Unmarshal([]byte(out), &agg))
		assert.Equal(t, int64(3), agg.TotalRows)
		require.Len(t, agg.Categories, 1)
		assert.Equal(t, "Lung", agg.Categories[0].Value)
	})

	t.Run("numeric", func(t *testing.T) {
		out, err := runCLI(t, append([]string{"aggregate", "column", "brca", "patients", "age"}, stores...)...)
		require.NoError(t, err)
		assert.Contains(t, out, "median")
		assert.Contains(t, out, "BIN START")
	})

	t.Run("unknown_column", func(t *testing.T) {
		_, err := runCLI(t, append([]string{"aggregate", "column", "brca", "patients", "nope"}, stores...)...)
		assert.Equal(t, "NOT_FOUND", errorCode(err))
	})

	t.Run("bad_filter", func(t *testing.T) {
		_, err := runCLI(t, append([]string{"aggregate", "column", "brca", "patients", "sex",
			"--filter", `{"not": 1}`}, stores...)...)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--filter")
	})
}

func TestAggregateTable(t *testing.T) {
	stores := importedStores(t)

	out, err := runCLI(t, append([]string{"aggregate", "table", "brca", "patients",
		"--filter", `[{"column": "age", "operator": "gte", "value": 55}]`}, stores...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "SUMMARY")
	assert.Contains(t, out, "min 60, median 65, max 70")
	assert.NotContains(t, out, "site_id", "hidden columns are skipped")
}

func TestSurvival(t *testing.T) {
	stores := importedStores(t)

	out, err := runCLI(t, append([]string{"survival", "brca", "patients",
		"--time", "os_months", "--status", "os_status", "-o", "json"}, stores...)...)
	require.NoError(t, err)

	var resp struct {
		Points []domain.SurvivalCurvePoint `json:"points"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Points, 3)
	assert.InDelta(t, 2.0/3.0, resp.Points[0].Survival, 1e-9)

	_, err = runCLI(t, append([]string{"survival", "brca", "patients", "--time", "os_months"}, stores...)...)
	require.Error(t, err, "--status is required")
}

func TestExplain(t *testing.T) {
	stores := importedStores(t)
	filterFile := filepath.Join(t.TempDir(), "filter.json")
	require.NoError(t, os.WriteFile(filterFile,
		[]byte(`{"tableName": "sites", "column": "region", "operator": "eq", "value": "North"}`), 0o600))

	out, err := runCLI(t, append([]string{"explain", "brca", "mutations", "--filter", "@" + filterFile, "-o", "json"}, stores...)...)
	require.NoError(t, err)

	var plan aggregation.Plan
	require.NoError(t, json.Unmarshal([]byte(out), &plan))
	assert.Equal(t, "rows", plan.MetricType)
	assert.Contains(t, plan.Where, "IN (SELECT")
	assert.Contains(t, plan.CountSQL, "count(*)")

	out, err = runCLI(t, append([]string{"explain", "brca", "patients"}, stores...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Where:   (none)")
}

func TestCheck(t *testing.T) {
	stores := importedStores(t)

	out, err := runCLI(t, append([]string{"check", "brca"}, stores...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "matches the store")

	_, err = runCLI(t, append([]string{"check", "missing"}, stores...)...)
	assert.Equal(t, "NOT_FOUND", errorCode(err))
}

func TestManifestMode(t *testing.T) {
	isolateEnv(t)
	duck := seedDuckDBFile(t, clinicalSeed...)
	t.Setenv("MANIFEST_DIR", filepath.Dir(clinicalManifest))

	out, err := runCLI(t, "aggregate", "column", "brca-2024", "patients", "sex", "--duckdb", duck, "-o", "json")
	require.NoError(t, err)
	var agg domain.ColumnAggregation
	require.NoError(t, json.Unmarshal([]byte(out), &agg))
	assert.Equal(t, int64(4), agg.TotalRows)

	out, err = runCLI(t, "datasets")
	require.NoError(t, err)
	assert.Contains(t, out, "brca-2024")
}

func TestVersionAndCompletion(t *testing.T) {
	isolateEnv(t)

	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("cohort version %s (commit: %s)\n", version, commit), out)

	out, err = runCLI(t, "completion", "bash")
	require.NoError(t, err)
	assert.True(t, containsIgnoreCase(out, "bash completion"))

	_, err = runCLI(t, "completion", "tcsh")
	require.EqualError(t, err, "unsupported shell: tcsh")
}

func TestRejectsUnexpectedArgs(t *testing.T) {
	isolateEnv(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "version_extra", args: []string{"version", "extra"}, want: `unknown command "extra"`},
		{name: "datasets_extra", args: []string{"datasets", "extra"}, want: `unknown command "extra"`},
		{name: "column_missing_arg", args: []string{"aggregate", "column", "brca", "patients"}, want: "accepts 3 arg(s)"},
		{name: "bad_output", args: []string{"version", "-o", "yaml"}, want: "unsupported output format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"not_found", domain.ErrNotFound("x"), "NOT_FOUND"},
		{"wrapped_validation", fmt.Errorf("ctx: %w", domain.ErrValidation("bad")), "VALIDATION_ERROR"},
		{"relationship", domain.ErrRelationship("a", "b", "no path"), "RELATIONSHIP_ERROR"},
		{"conflict", domain.ErrConflict("dup"), "CONFLICT"},
		{"plain", errors.New("boom"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorCode(tt.err))
		})
	}
}
