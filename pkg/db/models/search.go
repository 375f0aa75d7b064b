package models

import "strings"

// FoldSearch lower-cases and joins searchable fields. Folding happens in Go
// so non-ASCII letters match on every database.
func FoldSearch(fields ...string) string {
	return strings.ToLower(strings.Join(fields, "\n"))
}
