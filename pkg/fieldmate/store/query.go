package store

import (
	"fmt"
	"strings"
)

// listClause assembles WHERE/ORDER BY/LIMIT fragments shared by the
// domain list queries.
type listClause struct {
	where []string
	args  []any
}

func (c *listClause) and(cond string, args ...any) {
	c.where = append(c.where, cond)
	c.args = append(c.args, args...)
}

func (c *listClause) whereSQL() string {
	if len(c.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.where, " AND ")
}

// orderSQL validates the sort field against a whitelist and renders the
// ORDER BY clause. Unknown fields fall back to the default.
func orderSQL(field string, desc bool, allowed map[string]string, def string) string {
	col, ok := allowed[field]
	if !ok {
		col = def
	}
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	return fmt.Sprintf(" ORDER BY %s %s", col, dir)
}

// limitSQL renders LIMIT/OFFSET. limit <= 0 means a defensive cap rather
// than unbounded reads.
func limitSQL(limit, skip int) (string, []any) {
	if limit <= 0 {
		limit = 100
	}
	if skip < 0 {
		skip = 0
	}
	return " LIMIT ? OFFSET ?", []any{limit, skip}
}

// likePattern escapes user text for a case-insensitive LIKE match.
func likePattern(text string) string {
	text = strings.ReplaceAll(text, `\`, `\\`)
	text = strings.ReplaceAll(text, "%", `\%`)
	text = strings.ReplaceAll(text, "_", `\_`)
	return "%" + text + "%"
}
