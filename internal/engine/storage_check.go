package engine

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"cohortlens/internal/domain"
)

// StorageIssue is one mismatch between dataset metadata and the store.
type StorageIssue struct {
	Table   string `json:"table"`
	Column  string `json:"column,omitempty"`
	Message string `json:"message"`
}

type storageKey struct {
	schema string
	table  string
}

// CheckStorage compares the declared tables and columns of a dataset with
// information_schema.columns. Names compare case-insensitively, as DuckDB
// resolves them. An empty result means every table and column exists.
func CheckStorage(ctx context.Context, db *sql.DB, tables []domain.TableMetadata) ([]StorageIssue, error) {
	if len(tables) == 0 {
		return nil, nil
	}

	keys := make([]storageKey, len(tables))
	schemaSet := map[string]struct{}{}
	for i, t := range tables {
		keys[i] = splitStorageName(t)
		schemaSet[keys[i].schema] = struct{}{}
	}
	schemas := make([]string, 0, len(schemaSet))
	for s := range schemaSet {
		schemas = append(schemas, s)
	}
	sort.Strings(schemas)

	q, args, err := sq.Select("lower(table_schema)", "lower(table_name)", "lower(column_name)").
		From("information_schema.columns").
		Where(sq.Eq{"lower(table_schema)": schemas}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build information_schema query: %w", err)
	}
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query information_schema: %w", err)
	}
	defer rows.Close()

	present := map[storageKey]map[string]struct{}{}
	for rows.Next() {
		var k storageKey
		var column string
		if err := rows.Scan(&k.schema, &k.table, &column); err != nil {
			return nil, fmt.Errorf("scan information_schema: %w", err)
		}
		if present[k] == nil {
			present[k] = map[string]struct{}{}
		}
		present[k][column] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read information_schema: %w", err)
	}

	var issues []StorageIssue
	for i, t := range tables {
		cols, ok := present[keys[i]]
		if !ok {
			issues = append(issues, StorageIssue{
				Table:   t.TableName,
				Message: fmt.Sprintf("storage table %s.%s does not exist", keys[i].schema, keys[i].table),
			})
			continue
		}
		for _, c := range t.Columns {
			if _, ok := cols[strings.ToLower(c.Name)]; !ok {
				issues = append(issues, StorageIssue{
					Table:   t.TableName,
					Column:  c.Name,
					Message: fmt.Sprintf("column not found in %s.%s", keys[i].schema, keys[i].table),
				})
			}
		}
	}
	return issues, nil
}

// splitStorageName reads "table", "schema.table" or "catalog.schema.table".
// The catalog part is ignored; a bare table lives in "main".
func splitStorageName(t domain.TableMetadata) storageKey {
	name := t.QualifiedStorageName
	if name == "" {
		name = t.TableName
	}
	parts := strings.Split(strings.ToLower(name), ".")
	if len(parts) == 1 {
		return storageKey{schema: "main", table: parts[0]}
	}
	return storageKey{schema: parts[len(parts)-2], table: parts[len(parts)-1]}
}
