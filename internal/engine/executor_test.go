package engine

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cohortlens/internal/domain"
)

func openTestDuckDB(t *testing.T, stmts ...string) *sql.DB {
	t.Helper()
	db, err := OpenDuckDB("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	for _, s := range stmts {
		_, err := db.Exec(s)
		require.NoError(t, err, s)
	}
	return db
}

func TestExecutor_Query(t *testing.T) {
	db := openTestDuckDB(t,
		`CREATE TABLE patients (id INTEGER, sex VARCHAR, age DOUBLE)`,
		`INSERT INTO patients VALUES (1, 'F', 50.5), (2, NULL, NULL), (3, 'M', 61)`,
	)
	exec := NewExecutor(db, time.Second, slog.New(slog.DiscardHandler))

	res, err := exec.Query(context.Background(),
		`SELECT id, sex, age FROM patients ORDER BY id`)
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "sex", "age"}, res.Columns)
	assert.Equal(t, 3, res.RowCount)
	assert.Equal(t, "F", res.String(0, "sex"))
	assert.Nil(t, res.Value(1, "sex"))

	id, err := res.Int64(2, "id")
	require.NoError(t, err)
	assert.Equal(t, int64(3), id)

	age, valid, err := res.Float64(0, "age")
	require.NoError(t, err)
	assert.True(t, valid)
	assert.InDelta(t, 50.5, age, 1e-9)

	_, valid, err = res.Float64(1, "age")
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestExecutor_EmptyResult(t *testing.T) {
	db := openTestDuckDB(t, `CREATE TABLE t (a INTEGER)`)
	exec := NewExecutor(db, 0, slog.New(slog.DiscardHandler))

	res, err := exec.Query(context.Background(), `SELECT a FROM t`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, res.Columns)
	assert.Zero(t, res.RowCount)
}

func TestExecutor_RejectsWrites(t *testing.T) {
	db := openTestDuckDB(t, `CREATE TABLE t (a INTEGER)`)
	exec := NewExecutor(db, 0, slog.New(slog.DiscardHandler))

	_, err := exec.Query(context.Background(), `INSERT INTO t VALUES (1)`)
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)

	var n int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM t`).Scan(&n))
	assert.Zero(t, n, "rejected statement must not run")
}

func TestExecutor_Errors(t *testing.T) {
	db := openTestDuckDB(t)
	exec := NewExecutor(db, 0, slog.New(slog.DiscardHandler))

	t.Run("unknown_table", func(t *testing.T) {
		_, err := exec.Query(context.Background(), `SELECT * FROM missing`)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "execute query")
	})

	t.Run("cancelled_context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := exec.Query(ctx, `SELECT 1`)
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	})
}
