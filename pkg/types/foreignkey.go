package types

import "strings"

// ForeignKeySpec describes one foreign-key constraint: ordered base columns
// referencing ordered columns of another table, with optional actions.
type ForeignKeySpec struct {
	BaseColumns       []string
	ReferencedTable   string
	ReferencedColumns []string
	OnDelete          string
	OnUpdate          string
	Match             string
}

// EqualByBase reports whether the base-column sequences match
// case-insensitively after whitespace normalization.
func (s ForeignKeySpec) EqualByBase(o ForeignKeySpec) bool {
	return columnsEqualFold(s.BaseColumns, o.BaseColumns)
}

// EqualByTarget reports whether both specs reference the same table
// (case-insensitively) with matching referenced-column sequences.
func (s ForeignKeySpec) EqualByTarget(o ForeignKeySpec) bool {
	return strings.EqualFold(s.ReferencedTable, o.ReferencedTable) &&
		columnsEqualFold(s.ReferencedColumns, o.ReferencedColumns)
}

func columnsEqualFold(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(strings.TrimSpace(a[i]), strings.TrimSpace(b[i])) {
			return false
		}
	}
	return true
}

// SplitColumnList splits a comma-separated column list, trimming whitespace
// and dropping empty entries.
func SplitColumnList(csv string) []string {
	var out []string
	for _, p := range strings.Split(csv, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// FKOperationKind discriminates add from drop.
type FKOperationKind string

// Foreign-key operation kinds.
const (
	FKAdd  FKOperationKind = "ADD"
	FKDrop FKOperationKind = "DROP"
)

// FKOperation is one foreign-key add or drop extracted from the document.
type FKOperation struct {
	Kind           FKOperationKind
	BaseTable      string
	ConstraintName string
	Spec           ForeignKeySpec
}
