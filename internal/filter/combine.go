package filter

import "strings"

// And joins the non-empty conditions with AND. It returns the neutral
// condition when none remain.
func And(conds ...string) string {
	return join(" AND ", conds)
}

// Or joins the non-empty conditions with OR. It returns the neutral
// condition when none remain.
func Or(conds ...string) string {
	return join(" OR ", conds)
}

// Not negates cond. The negation of the neutral condition is neutral.
func Not(cond string) string {
	if cond == "" {
		return ""
	}
	return "NOT (" + cond + ")"
}

func join(sep string, conds []string) string {
	kept := make([]string, 0, len(conds))
	for _, c := range conds {
		if c != "" {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return ""
	}
	return "(" + strings.Join(kept, sep) + ")"
}
