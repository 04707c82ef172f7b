package manifest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cohortlens/internal/domain"
	"cohortlens/internal/testutil"
)

func TestLoadFile_Clinical(t *testing.T) {
	doc, err := LoadFile(filepath.Join("testdata", "clinical.yaml"))
	require.NoError(t, err)

	ds := doc.Dataset()
	assert.Equal(t, "brca-2024", ds.ID)
	assert.Equal(t, "brca", ds.Name)
	assert.Equal(t, testutil.ClinicalTables(), ds.Tables)
}

func TestParse_Rejects(t *testing.T) {
	const header = "apiVersion: cohortlens/v1\nkind: Dataset\nname: x\n"

	tests := []struct {
		name    string
		yaml    string
		wantMsg string
	}{
		{
			name:    "wrong_api_version",
			yaml:    "apiVersion: v0\nkind: Dataset\nname: x\n",
			wantMsg: "unsupported apiVersion",
		},
		{
			name:    "wrong_kind",
			yaml:    "apiVersion: cohortlens/v1\nkind: Table\nname: x\n",
			wantMsg: "unsupported kind",
		},
		{
			name:    "missing_name",
			yaml:    "apiVersion: cohortlens/v1\nkind: Dataset\n",
			wantMsg: "name is required",
		},
		{
			name:    "unsafe_table_name",
			yaml:    header + "tables:\n  - name: 'a;drop'\n    columns: []\n",
			wantMsg: "must match",
		},
		{
			name:    "unsafe_storage_name",
			yaml:    header + "tables:\n  - name: a\n    storage: 'main.a b'\n    columns: []\n",
			wantMsg: "table[a].storage",
		},
		{
			name:    "duplicate_table",
			yaml:    header + "tables:\n  - {name: a, columns: []}\n  - {name: a, columns: []}\n",
			wantMsg: "duplicate table name",
		},
		{
			name:    "duplicate_column",
			yaml:    header + "tables:\n  - name: a\n    columns:\n      - {name: c, type: text}\n      - {name: c, type: text}\n",
			wantMsg: "duplicate column",
		},
		{
			name:    "unknown_display_type",
			yaml:    header + "tables:\n  - name: a\n    columns:\n      - {name: c, type: blob}\n",
			wantMsg: "unknown display type",
		},
		{
			name: "dangling_foreign_key",
			yaml: header + "tables:\n  - name: a\n    columns:\n      - {name: c, type: id}\n" +
				"    relationships:\n      - {foreign_key: c, references: b.id}\n",
			wantMsg: "referenced table \"b\" is not declared",
		},
		{
			name: "foreign_key_not_a_column",
			yaml: header + "tables:\n  - name: a\n    columns:\n      - {name: c, type: id}\n" +
				"    relationships:\n      - {foreign_key: d, references: a.c}\n",
			wantMsg: "foreign key \"d\" is not a column",
		},
		{
			name: "malformed_reference",
			yaml: header + "tables:\n  - name: a\n    columns:\n      - {name: c, type: id}\n" +
				"    relationships:\n      - {foreign_key: c, references: a}\n",
			wantMsg: "references must be",
		},
		{
			name: "unknown_relationship_type",
			yaml: header + "tables:\n  - name: a\n    columns:\n      - {name: c, type: id}\n" +
				"    relationships:\n      - {foreign_key: c, references: a.c, type: many_to_many}\n",
			wantMsg: "unknown relationship type",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("test.yaml", []byte(tt.yaml))
			require.Error(t, err)
			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestParse_UnknownFieldIsSyntaxError(t *testing.T) {
	_, err := Parse("test.yaml", []byte("apiVersion: cohortlens/v1\nkind: Dataset\nname: x\nowner: me\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse test.yaml")
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	write("b.yml", "apiVersion: cohortlens/v1\nkind: Dataset\nname: second\n")
	write("a.yaml", "apiVersion: cohortlens/v1\nkind: Dataset\nname: first\n")
	write("notes.txt", "ignored")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o700))

	docs, err := LoadDirectory(dir)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "first", docs[0].Name)
	assert.Equal(t, "second", docs[1].Name)

	_, err = LoadDirectory(filepath.Join(dir, "missing"))
	require.Error(t, err)
}

func TestProvider(t *testing.T) {
	doc, err := LoadFile(filepath.Join("testdata", "clinical.yaml"))
	require.NoError(t, err)
	p, err := NewProvider(doc)
	require.NoError(t, err)

	ctx := context.Background()
	for _, key := range []string{"brca-2024", "brca"} {
		t.Run("lookup_by_"+key, func(t *testing.T) {
			tables, err := p.ListTables(ctx, key)
			require.NoError(t, err)
			assert.Len(t, tables, 6)
		})
	}

	t.Run("unknown_dataset", func(t *testing.T) {
		_, err := p.ListTables(ctx, "other")
		var nf *domain.NotFoundError
		require.ErrorAs(t, err, &nf)
	})

	t.Run("returned_slice_is_a_copy", func(t *testing.T) {
		tables, err := p.ListTables(ctx, "brca")
		require.NoError(t, err)
		tables[0].TableName = "mutated"
		again, err := p.ListTables(ctx, "brca")
		require.NoError(t, err)
		assert.Equal(t, "sites", again[0].TableName)
	})

	t.Run("duplicate_names_conflict", func(t *testing.T) {
		_, err := NewProvider(doc, doc.cloneWithID("other-id"))
		var ce *domain.ConflictError
		require.ErrorAs(t, err, &ce)
	})
}

func (d *Document) cloneWithID(id string) *Document {
	c := *d
	c.ID = id
	return &c
}
