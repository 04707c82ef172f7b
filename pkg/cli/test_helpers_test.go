package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"cohortlens/internal/engine"
)

// isolateEnv points HOME at a temp dir and clears the settings the CLI reads
// from the environment.
func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, k := range []string{"DUCKDB_PATH", "META_DB_PATH", "MANIFEST_DIR", "COHORT_OUTPUT", "ENV"} {
		t.Setenv(k, "")
	}
}

// runCLI executes the root command and returns what it wrote to stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "missing.env")))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

var clinicalSeed = []string{
	`CREATE TABLE sites (site_id INTEGER, region VARCHAR)`,
	`INSERT INTO sites VALUES (1, 'North'), (2, 'South')`,
	`CREATE TABLE patients (patient_id INTEGER, site_id INTEGER, sex VARCHAR, age INTEGER,
		os_months DOUBLE, os_status VARCHAR, diagnosis_date DATE)`,
	`INSERT INTO patients VALUES
		(1, 1, 'F', 50, 10, '1:DECEASED', DATE '2020-01-01'),
		(2, 1, 'M', 60, 20, '0:LIVING',   DATE '2020-02-01'),
		(3, 2, 'F', NULL, 30, 'Deceased', DATE '2020-03-01'),
		(4, 2, ' ', 70, 5, 'N/A',         NULL)`,
	`CREATE TABLE samples (sample_id VARCHAR, patient_id INTEGER, tissue VARCHAR, purity DOUBLE)`,
	`INSERT INTO samples VALUES ('s1', 1, 'Lung', 0.5), ('s2', 1, 'Lung', 0.7), ('s3', 2, 'Breast', NULL), ('s4', 3, 'Lung', 0.9)`,
	`CREATE TABLE mutations (mutation_id VARCHAR, sample_id VARCHAR, gene VARCHAR, vaf DOUBLE)`,
	`INSERT INTO mutations VALUES ('m1', 's1', 'TP53', 0.4), ('m2', 's3', 'PIK3CA', 0.2)`,
	`CREATE TABLE treatments (treatment_id INTEGER, patient_id INTEGER, drug VARCHAR)`,
	`CREATE TABLE audit_log (entry VARCHAR)`,
}

// seedDuckDBFile writes the clinical fixture to a DuckDB file and closes it.
func seedDuckDBFile(t *testing.T, stmts ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cohort.duckdb")
	db, err := engine.OpenDuckDB(path)
	require.NoError(t, err)
	for _, s := range stmts {
		_, err := db.Exec(s)
		require.NoError(t, err, s)
	}
	require.NoError(t, db.Close())
	return path
}

// containsIgnoreCase checks if s contains substr (case-insensitive).
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
