// Package sqlsafe validates and escapes every identifier and literal that
// the aggregation engine interpolates into DuckDB SQL text.
package sqlsafe

import (
	"regexp"
	"strings"

	"cohortlens/internal/domain"
)

// identifierRe allows alphanumeric + underscores, starting with a letter or underscore.
var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// maxIdentifierLen is the maximum length allowed for a SQL identifier.
const maxIdentifierLen = 128

// ValidateIdentifier returns the trimmed name when it exactly matches one of
// allowed (case-sensitive). Anything else is rejected, including names that
// are well-formed but unknown.
func ValidateIdentifier(name string, allowed []string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", domain.ErrValidation("invalid identifier: name is required")
	}
	for _, a := range allowed {
		if a == trimmed {
			return trimmed, nil
		}
	}
	return "", domain.ErrValidation("invalid identifier %q: not a known name", trimmed)
}

// ValidateIdentifierFormat checks that name is a safe SQL identifier:
//   - Non-empty
//   - At most 128 characters
//   - Matches [A-Za-z_][A-Za-z0-9_]*
func ValidateIdentifierFormat(name string) (string, error) {
	if name == "" {
		return "", domain.ErrValidation("invalid identifier: name is required")
	}
	if len(name) > maxIdentifierLen {
		return "", domain.ErrValidation("invalid identifier: name must be at most %d characters", maxIdentifierLen)
	}
	if !identifierRe.MatchString(name) {
		return "", domain.ErrValidation("invalid identifier %q: must match [A-Za-z_][A-Za-z0-9_]*", name)
	}
	return name, nil
}

// EscapeIdentifier re-validates name and wraps it in double quotes, doubling
// any embedded double-quote characters.
func EscapeIdentifier(name string) (string, error) {
	if _, err := ValidateIdentifierFormat(name); err != nil {
		return "", err
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`, nil
}

// MustEscapeIdentifier is EscapeIdentifier for names generated by the engine
// itself (aliases, output labels). It panics on invalid input.
func MustEscapeIdentifier(name string) string {
	quoted, err := EscapeIdentifier(name)
	if err != nil {
		panic(err)
	}
	return quoted
}

// UnquoteIdentifier parses a double-quoted identifier produced by
// EscapeIdentifier back into the bare name.
func UnquoteIdentifier(quoted string) (string, error) {
	if len(quoted) < 2 || quoted[0] != '"' || quoted[len(quoted)-1] != '"' {
		return "", domain.ErrValidation("invalid quoted identifier %q", quoted)
	}
	body := quoted[1 : len(quoted)-1]
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		if body[i] == '"' {
			if i+1 >= len(body) || body[i+1] != '"' {
				return "", domain.ErrValidation("invalid quoted identifier %q: unescaped quote", quoted)
			}
			i++
		}
		b.WriteByte(body[i])
	}
	return b.String(), nil
}

// QuoteQualifiedName quotes a dot-separated storage name such as
// "main.patients" part by part.
func QuoteQualifiedName(name string) (string, error) {
	parts := strings.Split(name, ".")
	quoted := make([]string, len(parts))
	for i, p := range parts {
		q, err := EscapeIdentifier(p)
		if err != nil {
			return "", err
		}
		quoted[i] = q
	}
	return strings.Join(quoted, "."), nil
}

// QualifiedColumn renders "alias"."column", or just "column" when alias is
// empty (unqualified subquery scope).
func QualifiedColumn(alias, column string) (string, error) {
	col, err := EscapeIdentifier(column)
	if err != nil {
		return "", err
	}
	if alias == "" {
		return col, nil
	}
	a, err := EscapeIdentifier(alias)
	if err != nil {
		return "", err
	}
	return a + "." + col, nil
}
