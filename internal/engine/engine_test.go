package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cohortlens/internal/domain"
)

func TestClassifyStatement(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want string
	}{
		{"select", "SELECT 1", "SELECT"},
		{"lower_case", "select count(*) from t", "SELECT"},
		{"leading_whitespace", "\n\t  SELECT 1", "SELECT"},
		{"with", "WITH x AS (SELECT 1) SELECT * FROM x", "WITH"},
		{"line_comment", "-- note\nSELECT 1", "SELECT"},
		{"block_comment", "/* a */ /* b */ SELECT 1", "SELECT"},
		{"parenthesized", "((SELECT 1))", "SELECT"},
		{"insert", "INSERT INTO t VALUES (1)", "INSERT"},
		{"comment_hides_drop", "/* SELECT */ DROP TABLE t", "DROP"},
		{"unterminated_line_comment", "-- SELECT 1", ""},
		{"unterminated_block_comment", "/* SELECT 1", ""},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyStatement(tt.sql))
		})
	}
}

func TestEnsureReadOnly(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		wantErr string
	}{
		{name: "select", sql: "SELECT 1"},
		{name: "with", sql: "with a as (select 1) select * from a"},
		{name: "update", sql: "UPDATE t SET a = 1", wantErr: "got UPDATE"},
		{name: "attach", sql: "ATTACH 'x.db'", wantErr: "got ATTACH"},
		{name: "copy", sql: "COPY t TO 'out.csv'", wantErr: "got COPY"},
		{name: "empty", sql: "", wantErr: "empty or unparseable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := EnsureReadOnly(tt.sql)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			var ve *domain.ValidationError
			assert.True(t, errors.As(err, &ve), "expected ValidationError, got %T", err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
