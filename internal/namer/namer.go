// Package namer assigns deterministic names to anonymous foreign-key
// operations so later passes can refer to them stably.
package namer

import (
	"strings"

	"github.com/mesh-intelligence/relift/pkg/types"
)

// maxNameLen is the hard cap on generated constraint names.
const maxNameLen = 60

// AutoName walks the document and fills in a deterministic constraintName
// on every addForeignKeyConstraint and dropForeignKeyConstraint that lacks
// one. It reports whether any change was modified. The naming is pure and
// idempotent: running it twice yields the same document.
func AutoName(doc *types.ChangeDocument) bool {
	modified := false
	for _, cs := range doc.ChangeSets {
		for _, c := range cs.Changes {
			switch v := c.(type) {
			case *types.AddForeignKey:
				if v.ConstraintName == "" {
					v.ConstraintName = ForeignKeyName(v.BaseTableName, v.BaseColumnNames, v.ReferencedTableName)
					v.Raw = nil
					cs.Touch()
					modified = true
				}
			case *types.DropForeignKey:
				if v.ConstraintName == "" {
					v.ConstraintName = ForeignKeyName(v.BaseTableName, v.BaseColumnNames, v.ReferencedTableName)
					v.Raw = nil
					cs.Touch()
					modified = true
				}
			}
		}
	}
	return modified
}

// ForeignKeyName builds the deterministic constraint name for a foreign-key
// operation. With a referenced table the shape is
// fk_<base>_<cols>__<ref>; without one it is fk_<base>_<cols>. Missing
// parts fall back to "table" and "col". The result is truncated at 60
// characters.
func ForeignKeyName(baseTable, baseColumnsCsv, referencedTable string) string {
	if baseTable == "" {
		baseTable = "table"
	}
	if baseColumnsCsv == "" {
		baseColumnsCsv = "col"
	}
	base := slug(baseTable)
	cols := slug(strings.ReplaceAll(baseColumnsCsv, ",", "_"))

	name := "fk_" + base + "_" + cols
	if referencedTable != "" {
		name += "__" + slug(referencedTable)
	}
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}
	return name
}

// slug lowercases, maps every character outside [a-z0-9_] to "_", collapses
// runs of "_", and strips a leading "_". An empty result yields "v".
func slug(v string) string {
	lower := strings.ToLower(v)
	var b strings.Builder
	prevUnderscore := false
	for _, r := range lower {
		ok := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_'
		if !ok {
			r = '_'
		}
		if r == '_' {
			if prevUnderscore {
				continue
			}
			prevUnderscore = true
		} else {
			prevUnderscore = false
		}
		b.WriteRune(r)
	}
	s := strings.TrimPrefix(b.String(), "_")
	if s == "" {
		return "v"
	}
	return s
}
