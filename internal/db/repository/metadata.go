package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"cohortlens/internal/domain"
)

// Compile-time check.
var _ domain.DatasetRepository = (*MetadataRepo)(nil)

// MetadataRepo stores dataset, table, column and relationship metadata.
// Writes go through the single-connection write pool, lookups through the
// read pool.
type MetadataRepo struct {
	write *sql.DB
	read  *sql.DB
}

// NewMetadataRepo creates a MetadataRepo. The same *sql.DB may be passed for
// both pools.
func NewMetadataRepo(write, read *sql.DB) *MetadataRepo {
	return &MetadataRepo{write: write, read: read}
}

// ImportDataset registers a dataset with all of its tables. The whole import
// is one transaction. A missing ID is generated.
func (r *MetadataRepo) ImportDataset(ctx context.Context, ds *domain.Dataset) (*domain.Dataset, error) {
	out := *ds
	if out.ID == "" {
		out.ID = domain.NewID()
	}
	out.CreatedAt = time.Now().UTC().Truncate(time.Second)

	tx, err := r.write.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin import tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = sq.Insert("datasets").
		Columns("id", "name", "description", "created_at").
		Values(out.ID, out.Name, out.Description, out.CreatedAt.Format(time.RFC3339)).
		RunWith(tx).ExecContext(ctx)
	if err != nil {
		return nil, mapDBError(err, fmt.Sprintf("dataset %q", out.Name))
	}

	for i, t := range out.Tables {
		if err := insertTable(ctx, tx, out.ID, i, t); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit import: %w", err)
	}
	return &out, nil
}

func insertTable(ctx context.Context, tx *sql.Tx, datasetID string, position int, t domain.TableMetadata) error {
	res, err := sq.Insert("dataset_tables").
		Columns("dataset_id", "table_name", "qualified_storage_name", "position").
		Values(datasetID, t.TableName, t.QualifiedStorageName, position).
		RunWith(tx).ExecContext(ctx)
	if err != nil {
		return mapDBError(err, fmt.Sprintf("table %q", t.TableName))
	}
	tableID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("table %q id: %w", t.TableName, err)
	}

	if len(t.Columns) > 0 {
		ins := sq.Insert("dataset_columns").Columns("table_id", "name", "display_type", "hidden", "position")
		for i, c := range t.Columns {
			ins = ins.Values(tableID, c.Name, c.DisplayType, boolToInt(c.Hidden), i)
		}
		if _, err := ins.RunWith(tx).ExecContext(ctx); err != nil {
			return mapDBError(err, fmt.Sprintf("column of table %q", t.TableName))
		}
	}

	if len(t.Relationships) > 0 {
		ins := sq.Insert("dataset_relationships").
			Columns("table_id", "foreign_key", "referenced_table", "referenced_column", "rel_type", "position")
		for i, rel := range t.Relationships {
			relType := rel.Type
			if relType == "" {
				relType = domain.RelationshipManyToOne
			}
			ins = ins.Values(tableID, rel.ForeignKey, rel.ReferencedTable, rel.ReferencedColumn, relType, i)
		}
		if _, err := ins.RunWith(tx).ExecContext(ctx); err != nil {
			return fmt.Errorf("insert relationships of %q: %w", t.TableName, err)
		}
	}
	return nil
}

// ListDatasets returns all registered datasets without their tables.
func (r *MetadataRepo) ListDatasets(ctx context.Context) ([]domain.Dataset, error) {
	rows, err := sq.Select("id", "name", "description", "created_at").
		From("datasets").
		OrderBy("name").
		RunWith(r.read).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	defer rows.Close()

	var out []domain.Dataset
	for rows.Next() {
		var ds domain.Dataset
		var created string
		if err := rows.Scan(&ds.ID, &ds.Name, &ds.Description, &created); err != nil {
			return nil, err
		}
		ds.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, ds)
	}
	return out, rows.Err()
}

// ListTables returns the tables of a dataset, looked up by id or by name, in
// import order.
func (r *MetadataRepo) ListTables(ctx context.Context, datasetID string) ([]domain.TableMetadata, error) {
	var id string
	err := sq.Select("id").
		From("datasets").
		Where(sq.Or{sq.Eq{"id": datasetID}, sq.Eq{"name": datasetID}}).
		Limit(1).
		RunWith(r.read).QueryRowContext(ctx).Scan(&id)
	if err != nil {
		return nil, mapDBError(err, fmt.Sprintf("dataset %q", datasetID))
	}

	tables, index, err := r.loadTables(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.loadColumns(ctx, id, tables, index); err != nil {
		return nil, err
	}
	if err := r.loadRelationships(ctx, id, tables, index); err != nil {
		return nil, err
	}
	return tables, nil
}

func (r *MetadataRepo) loadTables(ctx context.Context, datasetID string) ([]domain.TableMetadata, map[int64]int, error) {
	rows, err := sq.Select("id", "table_name", "qualified_storage_name").
		From("dataset_tables").
		Where(sq.Eq{"dataset_id": datasetID}).
		OrderBy("position").
		RunWith(r.read).QueryContext(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []domain.TableMetadata
	index := make(map[int64]int)
	for rows.Next() {
		var id int64
		var t domain.TableMetadata
		if err := rows.Scan(&id, &t.TableName, &t.QualifiedStorageName); err != nil {
			return nil, nil, err
		}
		index[id] = len(tables)
		tables = append(tables, t)
	}
	return tables, index, rows.Err()
}

func (r *MetadataRepo) loadColumns(ctx context.Context, datasetID string, tables []domain.TableMetadata, index map[int64]int) error {
	rows, err := sq.Select("c.table_id", "c.name", "c.display_type", "c.hidden").
		From("dataset_columns c").
		Join("dataset_tables t ON t.id = c.table_id").
		Where(sq.Eq{"t.dataset_id": datasetID}).
		OrderBy("c.table_id", "c.position").
		RunWith(r.read).QueryContext(ctx)
	if err != nil {
		return fmt.Errorf("list columns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tableID, hidden int64
		var c domain.ColumnMetadata
		if err := rows.Scan(&tableID, &c.Name, &c.DisplayType, &hidden); err != nil {
			return err
		}
		c.Hidden = hidden != 0
		if i, ok := index[tableID]; ok {
			tables[i].Columns = append(tables[i].Columns, c)
		}
	}
	return rows.Err()
}

func (r *MetadataRepo) loadRelationships(ctx context.Context, datasetID string, tables []domain.TableMetadata, index map[int64]int) error {
	rows, err := sq.Select("r.table_id", "r.foreign_key", "r.referenced_table", "r.referenced_column", "r.rel_type").
		From("dataset_relationships r").
		Join("dataset_tables t ON t.id = r.table_id").
		Where(sq.Eq{"t.dataset_id": datasetID}).
		OrderBy("r.table_id", "r.position").
		RunWith(r.read).QueryContext(ctx)
	if err != nil {
		return fmt.Errorf("list relationships: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tableID int64
		var rel domain.Relationship
		if err := rows.Scan(&tableID, &rel.ForeignKey, &rel.ReferencedTable, &rel.ReferencedColumn, &rel.Type); err != nil {
			return err
		}
		if i, ok := index[tableID]; ok {
			tables[i].Relationships = append(tables[i].Relationships, rel)
		}
	}
	return rows.Err()
}
