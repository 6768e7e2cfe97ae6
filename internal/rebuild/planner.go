// Package rebuild plans and executes the SQLite physical table rebuild
// that swaps foreign-key constraints while preserving the table's columns
// (order, type, NOT NULL, default), primary key, AUTOINCREMENT, rows,
// indexes with stored SQL, and triggers. UNIQUE and CHECK constraints
// declared in the CREATE TABLE and column collations are not carried into
// the rebuilt table.
package rebuild

import (
	"regexp"
	"strings"

	"github.com/mesh-intelligence/relift/internal/schema"
	"github.com/mesh-intelligence/relift/pkg/types"
)

// FinalForeignKeys computes the foreign-key set the rebuilt table ends up
// with: the current set minus every spec matching a drop (by base columns
// or by target), plus the adds. An add replaces any survivor with equal
// base columns, so the result never carries two specs over the same base.
func FinalForeignKeys(current, adds, drops []types.ForeignKeySpec) []types.ForeignKeySpec {
	remaining := make([]types.ForeignKeySpec, 0, len(current)+len(adds))
	for _, fk := range current {
		dropped := false
		for _, d := range drops {
			if fk.EqualByBase(d) || fk.EqualByTarget(d) {
				dropped = true
				break
			}
		}
		if !dropped {
			remaining = append(remaining, fk)
		}
	}

	for _, add := range adds {
		kept := remaining[:0]
		for _, fk := range remaining {
			if !fk.EqualByBase(add) {
				kept = append(kept, fk)
			}
		}
		remaining = append(kept, add)
	}
	return remaining
}

// AutoIncrementColumns returns the columns of the table that carry
// AUTOINCREMENT. Only a sole primary-key column of declared type INTEGER
// qualifies; detection tokenizes the raw CREATE statement uppercased.
func AutoIncrementColumns(ts *schema.TableSchema) []string {
	pk := ts.PrimaryKeyColumns()
	if len(pk) != 1 {
		return nil
	}
	col := pk[0]
	for _, c := range ts.Columns {
		if c.PrimaryKey && !strings.EqualFold(strings.TrimSpace(c.Type), "INTEGER") {
			return nil
		}
	}
	up := strings.ToUpper(ts.CreateSQL)

	if !nameAppears(up, strings.ToUpper(col)) {
		return nil
	}
	if !strings.Contains(up, "INTEGER") ||
		!strings.Contains(up, "PRIMARY KEY") ||
		!strings.Contains(up, "AUTOINCREMENT") {
		return nil
	}
	return []string{col}
}

// nameAppears reports whether the (already uppercased) column name occurs
// in the uppercased DDL, quoted or as a standalone token.
func nameAppears(upSQL, upName string) bool {
	if strings.Contains(upSQL, `"`+upName+`"`) {
		return true
	}
	re := regexp.MustCompile(`(^|[^A-Z0-9_])` + regexp.QuoteMeta(upName) + `($|[^A-Z0-9_])`)
	return re.MatchString(upSQL)
}

// BuildCreateTable renders the CREATE TABLE statement for the rebuild
// target. Column order follows the observed schema exactly; a single-column
// primary key is declared inline, a composite one as a table constraint.
// Default expressions pass through verbatim. Foreign keys without a
// referenced table are skipped, and MATCH is emitted only when it is
// meaningful.
func BuildCreateTable(target string, ts *schema.TableSchema, fks []types.ForeignKeySpec, autoInc []string) string {
	pk := ts.PrimaryKeyColumns()
	auto := map[string]bool{}
	for _, c := range autoInc {
		auto[strings.ToLower(c)] = true
	}

	var defs []string
	for _, c := range ts.Columns {
		var col strings.Builder
		col.WriteString("  " + schema.Quote(c.Name))
		if c.Type != "" {
			col.WriteString(" " + c.Type)
		}
		if len(pk) == 1 && c.PrimaryKey {
			col.WriteString(" PRIMARY KEY")
			if auto[strings.ToLower(c.Name)] {
				col.WriteString(" AUTOINCREMENT")
			}
		}
		if c.NotNull {
			col.WriteString(" NOT NULL")
		}
		if c.Default.Valid {
			col.WriteString(" DEFAULT " + c.Default.String)
		}
		defs = append(defs, col.String())
	}

	if len(pk) > 1 {
		defs = append(defs, "  PRIMARY KEY ("+quoteJoin(pk)+")")
	}

	for _, fk := range fks {
		if strings.TrimSpace(fk.ReferencedTable) == "" {
			continue
		}
		var def strings.Builder
		def.WriteString("  FOREIGN KEY (" + quoteJoin(fk.BaseColumns) + ")")
		def.WriteString(" REFERENCES " + schema.Quote(fk.ReferencedTable))
		def.WriteString(" (" + quoteJoin(fk.ReferencedColumns) + ")")
		if fk.OnDelete != "" {
			def.WriteString(" ON DELETE " + fk.OnDelete)
		}
		if fk.OnUpdate != "" {
			def.WriteString(" ON UPDATE " + fk.OnUpdate)
		}
		if fk.Match != "" && !strings.EqualFold(fk.Match, "NONE") {
			def.WriteString(" MATCH " + fk.Match)
		}
		defs = append(defs, def.String())
	}

	return "CREATE TABLE " + schema.Quote(target) + " (\n" +
		strings.Join(defs, ",\n") + "\n)"
}

func quoteJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = schema.Quote(strings.TrimSpace(c))
	}
	return strings.Join(quoted, ",")
}
