package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cohortlens/internal/domain"
)

func TestCheckStorage(t *testing.T) {
	db := openTestDuckDB(t,
		`CREATE TABLE patients (patient_id INTEGER, Sex VARCHAR)`,
		`CREATE SCHEMA lab`,
		`CREATE TABLE lab.samples (sample_id VARCHAR, patient_id INTEGER)`,
	)

	tables := []domain.TableMetadata{
		{
			TableName: "patients",
			Columns:   []domain.ColumnMetadata{{Name: "patient_id"}, {Name: "sex"}},
		},
		{
			TableName:            "samples",
			QualifiedStorageName: "memory.lab.samples",
			Columns:              []domain.ColumnMetadata{{Name: "sample_id"}, {Name: "tissue"}},
		},
		{
			TableName:            "treatments",
			QualifiedStorageName: "main.treatments",
			Columns:              []domain.ColumnMetadata{{Name: "drug"}},
		},
	}

	issues, err := CheckStorage(context.Background(), db, tables)
	require.NoError(t, err)
	require.Len(t, issues, 2)

	assert.Equal(t, "samples", issues[0].Table)
	assert.Equal(t, "tissue", issues[0].Column)
	assert.Equal(t, "treatments", issues[1].Table)
	assert.Empty(t, issues[1].Column)
	assert.Contains(t, issues[1].Message, "main.treatments")
}

func TestCheckStorage_NoTables(t *testing.T) {
	issues, err := CheckStorage(context.Background(), openTestDuckDB(t), nil)
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestSplitStorageName(t *testing.T) {
	tests := []struct {
		name string
		meta domain.TableMetadata
		want storageKey
	}{
		{"bare_table_name", domain.TableMetadata{TableName: "Patients"}, storageKey{"main", "patients"}},
		{"schema_qualified", domain.TableMetadata{QualifiedStorageName: "lab.samples"}, storageKey{"lab", "samples"}},
		{"catalog_qualified", domain.TableMetadata{QualifiedStorageName: "db.lab.samples"}, storageKey{"lab", "samples"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitStorageName(tt.meta))
		})
	}
}
