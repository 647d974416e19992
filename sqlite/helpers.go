package sqlite

import (
	"fmt"
	"strings"
	"time"
)

// timeLayout is fixed width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime parses a stored timestamp.
// Returns an error if parsing fails with a descriptive message including the field name.
func parseTime(value, fieldName string) (time.Time, error) {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse %s: %w", fieldName, err)
	}
	return t, nil
}

// appendLimit appends a LIMIT clause to a query builder if limit is > 0.
func appendLimit(query *strings.Builder, args *[]any, limit int) {
	if limit > 0 {
		query.WriteString(" LIMIT ?")
		*args = append(*args, limit)
	}
}

// likePattern builds a LIKE pattern matching s anywhere, escaping wildcards
// with a backslash.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

// joinAncestry encodes section titles in a single column. Titles never
// contain newlines.
func joinAncestry(titles []string) string {
	return strings.Join(titles, "\n")
}

func splitAncestry(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
