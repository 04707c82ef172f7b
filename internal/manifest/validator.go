package manifest

import (
	"fmt"
	"strings"

	"cohortlens/internal/domain"
	"cohortlens/internal/sqlsafe"
)

// Issue is a single problem found in a manifest.
type Issue struct {
	Path    string // e.g. "table[samples].column[2]"
	Message string
}

func (i Issue) Error() string {
	if i.Path != "" {
		return fmt.Sprintf("%s: %s", i.Path, i.Message)
	}
	return i.Message
}

var displayTypes = map[string]bool{
	domain.DisplayCategorical: true,
	domain.DisplayID:          true,
	domain.DisplayGeographic:  true,
	domain.DisplayNumeric:     true,
	domain.DisplayDate:        true,
	domain.DisplayText:        true,
}

var relationshipTypes = map[string]bool{
	"":                           true,
	domain.RelationshipManyToOne: true,
	domain.RelationshipOneToOne:  true,
}

// Validate checks a manifest for identifier safety, duplicate names and
// dangling foreign keys. It returns every issue found.
func Validate(doc *Document) []Issue {
	var issues []Issue

	if doc.APIVersion != SupportedAPIVersion {
		addIssue(&issues, "", "unsupported apiVersion %q (expected %q)", doc.APIVersion, SupportedAPIVersion)
	}
	if doc.Kind != KindDataset {
		addIssue(&issues, "", "unsupported kind %q (expected %q)", doc.Kind, KindDataset)
	}
	if strings.TrimSpace(doc.Name) == "" {
		addIssue(&issues, "", "name is required")
	}

	columns := make(map[string]map[string]bool, len(doc.Tables))
	for i, t := range doc.Tables {
		path := fmt.Sprintf("table[%d]", i)
		if t.Name != "" {
			path = fmt.Sprintf("table[%s]", t.Name)
		}
		if _, err := sqlsafe.ValidateIdentifierFormat(t.Name); err != nil {
			addIssue(&issues, path, "%v", err)
		}
		if _, dup := columns[t.Name]; dup {
			addIssue(&issues, path, "duplicate table name")
		}
		if t.Storage != "" {
			for _, part := range strings.Split(t.Storage, ".") {
				if _, err := sqlsafe.ValidateIdentifierFormat(part); err != nil {
					addIssue(&issues, path+".storage", "%v", err)
					break
				}
			}
		}

		cols := make(map[string]bool, len(t.Columns))
		for j, c := range t.Columns {
			cpath := fmt.Sprintf("%s.column[%d]", path, j)
			if _, err := sqlsafe.ValidateIdentifierFormat(c.Name); err != nil {
				addIssue(&issues, cpath, "%v", err)
			}
			if cols[c.Name] {
				addIssue(&issues, cpath, "duplicate column %q", c.Name)
			}
			if !displayTypes[c.Type] {
				addIssue(&issues, cpath, "unknown display type %q", c.Type)
			}
			cols[c.Name] = true
		}
		columns[t.Name] = cols
	}

	for i, t := range doc.Tables {
		for j, r := range t.Relationships {
			rpath := fmt.Sprintf("table[%s].relationship[%d]", t.Name, j)
			if t.Name == "" {
				rpath = fmt.Sprintf("table[%d].relationship[%d]", i, j)
			}
			if !columns[t.Name][r.ForeignKey] {
				addIssue(&issues, rpath, "foreign key %q is not a column of %q", r.ForeignKey, t.Name)
			}
			if !relationshipTypes[r.Type] {
				addIssue(&issues, rpath, "unknown relationship type %q", r.Type)
			}
			refTable, refColumn, ok := splitReference(r.References)
			if !ok {
				addIssue(&issues, rpath, "references must be \"table.column\", got %q", r.References)
				continue
			}
			refCols, known := columns[refTable]
			switch {
			case !known:
				addIssue(&issues, rpath, "referenced table %q is not declared", refTable)
			case !refCols[refColumn]:
				addIssue(&issues, rpath, "referenced column %q is not a column of %q", refColumn, refTable)
			}
		}
	}

	return issues
}

func addIssue(issues *[]Issue, path, msg string, args ...any) {
	*issues = append(*issues, Issue{Path: path, Message: fmt.Sprintf(msg, args...)})
}

func splitReference(ref string) (table, column string, ok bool) {
	table, column, ok = strings.Cut(ref, ".")
	if !ok || table == "" || column == "" || strings.Contains(column, ".") {
		return "", "", false
	}
	return table, column, true
}

// issuesError folds validation issues into one domain.ValidationError.
func issuesError(source string, issues []Issue) error {
	msgs := make([]string, len(issues))
	for i, is := range issues {
		msgs[i] = is.Error()
	}
	return domain.ErrValidation("%s: %s", source, strings.Join(msgs, "; "))
}
