package domain

// Display types drive which statistics are computed for a column.
const (
	DisplayCategorical = "categorical"
	DisplayID          = "id"
	DisplayGeographic  = "geographic"
	DisplayNumeric     = "numeric"
	DisplayDate        = "date"
	DisplayText        = "text"
)

// Relationship types as declared by dataset metadata. They are informational;
// path resolution only looks at the foreign key direction.
const (
	RelationshipManyToOne = "many_to_one"
	RelationshipOneToOne  = "one_to_one"
)

// TableMetadata describes one table of a dataset and its outgoing foreign keys.
type TableMetadata struct {
	TableName            string
	QualifiedStorageName string
	Columns              []ColumnMetadata
	Relationships        []Relationship
}

// ColumnMetadata describes a column visible to the aggregation engine.
type ColumnMetadata struct {
	Name        string
	DisplayType string
	Hidden      bool
}

// Relationship is a directed edge: this table's ForeignKey references
// ReferencedTable.ReferencedColumn.
type Relationship struct {
	ForeignKey       string
	ReferencedTable  string
	ReferencedColumn string
	Type             string
}

// ColumnNames returns the names of all declared columns, hidden ones included.
func (t TableMetadata) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by exact name.
func (t TableMetadata) Column(name string) (ColumnMetadata, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnMetadata{}, false
}

// VisibleColumns returns the columns that table-wide aggregation covers.
func (t TableMetadata) VisibleColumns() []ColumnMetadata {
	out := make([]ColumnMetadata, 0, len(t.Columns))
	for _, c := range t.Columns {
		if !c.Hidden {
			out = append(out, c)
		}
	}
	return out
}

// FindTable returns the table with the given name from a dataset listing.
func FindTable(tables []TableMetadata, name string) (TableMetadata, bool) {
	for _, t := range tables {
		if t.TableName == name {
			return t, true
		}
	}
	return TableMetadata{}, false
}
