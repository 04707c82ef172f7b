package manifest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"cohortlens/internal/domain"
)

// Parse decodes and validates one manifest. Unknown fields are rejected.
// source names the input in error messages.
func Parse(source string, data []byte) (*Document, error) {
	var doc Document
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", source, err)
	}
	if issues := Validate(&doc); len(issues) > 0 {
		return nil, issuesError(source, issues)
	}
	return &doc, nil
}

// LoadFile reads and validates a manifest from disk.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is chosen by the operator
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(path, data)
}

// LoadDirectory loads every *.yaml and *.yml manifest in dir, sorted by file
// name.
func LoadDirectory(dir string) ([]*Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("manifest directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	docs := make([]*Document, 0, len(names))
	for _, name := range names {
		doc, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Dataset converts a validated manifest into domain metadata. Tables without
// an explicit storage name live in the "main" schema.
func (d *Document) Dataset() *domain.Dataset {
	ds := &domain.Dataset{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Tables:      make([]domain.TableMetadata, len(d.Tables)),
	}
	for i, t := range d.Tables {
		storage := t.Storage
		if storage == "" {
			storage = "main." + t.Name
		}
		tm := domain.TableMetadata{
			TableName:            t.Name,
			QualifiedStorageName: storage,
			Columns:              make([]domain.ColumnMetadata, len(t.Columns)),
		}
		for j, c := range t.Columns {
			tm.Columns[j] = domain.ColumnMetadata{Name: c.Name, DisplayType: c.Type, Hidden: c.Hidden}
		}
		for _, r := range t.Relationships {
			refTable, refColumn, _ := splitReference(r.References)
			relType := r.Type
			if relType == "" {
				relType = domain.RelationshipManyToOne
			}
			tm.Relationships = append(tm.Relationships, domain.Relationship{
				ForeignKey:       r.ForeignKey,
				ReferencedTable:  refTable,
				ReferencedColumn: refColumn,
				Type:             relType,
			})
		}
		ds.Tables[i] = tm
	}
	return ds
}
