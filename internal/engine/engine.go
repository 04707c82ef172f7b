// Package engine runs read-only analytical queries against DuckDB.
package engine

import (
	"database/sql"
	"fmt"
	"strings"
	"unicode"

	_ "github.com/duckdb/duckdb-go/v2" // registers the "duckdb" driver

	"cohortlens/internal/domain"
)

// OpenDuckDB opens a DuckDB database. An empty path opens an in-memory
// database.
func OpenDuckDB(path string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}
	return db, nil
}

// ClassifyStatement returns the upper-cased leading keyword of a statement,
// skipping whitespace, line comments and block comments.
func ClassifyStatement(sqlQuery string) string {
	s := sqlQuery
	for {
		s = strings.TrimLeftFunc(s, unicode.IsSpace)
		switch {
		case strings.HasPrefix(s, "--"):
			if i := strings.IndexByte(s, '\n'); i >= 0 {
				s = s[i+1:]
				continue
			}
			return ""
		case strings.HasPrefix(s, "/*"):
			if i := strings.Index(s, "*/"); i >= 0 {
				s = s[i+2:]
				continue
			}
			return ""
		case strings.HasPrefix(s, "("):
			s = s[1:]
			continue
		}
		break
	}
	end := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsLetter(r) })
	if end < 0 {
		end = len(s)
	}
	return strings.ToUpper(s[:end])
}

// EnsureReadOnly rejects anything but SELECT and WITH statements.
func EnsureReadOnly(sqlQuery string) error {
	switch kw := ClassifyStatement(sqlQuery); kw {
	case "SELECT", "WITH":
		return nil
	case "":
		return domain.ErrValidation("empty or unparseable statement")
	default:
		return domain.ErrValidation("only SELECT statements are allowed, got %s", kw)
	}
}
