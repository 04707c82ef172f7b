// Package manifest loads dataset descriptions from YAML files.
package manifest

// SupportedAPIVersion is the only manifest apiVersion accepted.
const SupportedAPIVersion = "cohortlens/v1"

// KindDataset is the manifest kind describing one dataset.
const KindDataset = "Dataset"

// Document is one dataset manifest.
type Document struct {
	APIVersion  string      `yaml:"apiVersion"`
	Kind        string      `yaml:"kind"`
	ID          string      `yaml:"id,omitempty"`
	Name        string      `yaml:"name"`
	Description string      `yaml:"description,omitempty"`
	Tables      []TableSpec `yaml:"tables"`
}

// TableSpec declares a table, its columns and its foreign keys.
type TableSpec struct {
	Name          string             `yaml:"name"`
	Storage       string             `yaml:"storage"`
	Columns       []ColumnSpec       `yaml:"columns"`
	Relationships []RelationshipSpec `yaml:"relationships,omitempty"`
}

// ColumnSpec declares a column and how it is displayed.
type ColumnSpec struct {
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`
	Hidden bool   `yaml:"hidden,omitempty"`
}

// RelationshipSpec declares a foreign key. References is "table.column".
type RelationshipSpec struct {
	ForeignKey string `yaml:"foreign_key"`
	References string `yaml:"references"`
	Type       string `yaml:"type,omitempty"`
}
