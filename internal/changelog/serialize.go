package changelog

import (
	"strings"

	"github.com/mesh-intelligence/relift/pkg/types"
)

// Canonical layout used for ChangeSets created programmatically.
var canonicalLayout = types.Layout{Dash: 2, Field: 6, Item: 8}

// Serialize renders the document. Untouched ChangeSets are spliced from
// their raw source lines; modified ones are re-rendered at the indentation
// recorded when they were parsed.
func Serialize(doc *types.ChangeDocument) string {
	var out []string

	if len(doc.Header) > 0 {
		out = append(out, doc.Header...)
	} else {
		out = append(out, "databaseChangeLog:")
	}

	for _, cs := range doc.ChangeSets {
		if cs.Raw != nil {
			out = append(out, cs.Raw...)
			continue
		}
		out = append(out, renderChangeSet(cs)...)
	}

	s := strings.Join(out, "\n")
	if doc.TrailingNewline {
		s += "\n"
	}
	return s
}

// needsQuoting reports whether a scalar must be single-quoted on write:
// values containing whitespace or colons, empty values, and values whose
// leading character would change the line's meaning.
func needsQuoting(v string) bool {
	if v == "" {
		return true
	}
	if strings.ContainsAny(v, " \t:") {
		return true
	}
	return strings.ContainsRune("-?[]{}#&*!|>'\"%@`", rune(v[0]))
}

func scalar(v string) string {
	if needsQuoting(v) {
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	}
	return v
}

func pad(n int) string { return strings.Repeat(" ", n) }

func renderChangeSet(cs *types.ChangeSet) []string {
	layout := cs.Layout
	if layout == (types.Layout{}) {
		layout = canonicalLayout
	}

	var out []string
	out = append(out, pad(layout.Dash)+"- changeSet:")
	out = append(out, pad(layout.Field)+"id: "+scalar(cs.ID))
	out = append(out, pad(layout.Field)+"author: "+scalar(cs.Author))
	if cs.Labels != "" {
		out = append(out, pad(layout.Field)+"labels: "+scalar(cs.Labels))
	}
	if cs.Preconditions != nil {
		out = append(out, renderPreconditions(cs.Preconditions, layout.Field)...)
	}
	out = append(out, pad(layout.Field)+"changes:")
	for _, c := range cs.Changes {
		if raw := c.RawLines(); raw != nil {
			out = append(out, raw...)
			continue
		}
		out = append(out, renderChange(c, layout.Item)...)
	}
	return out
}

func renderPreconditions(p *types.Preconditions, field int) []string {
	if p.Raw != nil {
		return p.Raw
	}
	out := []string{
		pad(field) + "preConditions:",
		pad(field+2) + "onFail: " + p.OnFail,
		pad(field+2) + "onError: " + p.OnError,
		pad(field+2) + "and:",
	}
	for _, t := range p.TableExists {
		out = append(out,
			pad(field+4)+"- tableExists:",
			pad(field+8)+"tableName: '"+strings.ReplaceAll(t, "'", "''")+"'")
	}
	return out
}

func renderChange(c types.Change, item int) []string {
	field := item + 4
	out := []string{pad(item) + "- " + c.Kind() + ":"}

	kv := func(k, v string) {
		out = append(out, pad(field)+k+": "+scalar(v))
	}
	opt := func(k, v string) {
		if v != "" {
			kv(k, v)
		}
	}

	switch v := c.(type) {
	case *types.CreateIndex:
		kv("tableName", v.TableName)
		kv("indexName", v.IndexName)
		if v.Unique {
			out = append(out, pad(field)+"unique: true")
		}
		out = append(out, pad(field)+"columns:")
		for _, col := range v.Columns {
			out = append(out,
				pad(field+2)+"- column:",
				pad(field+6)+"name: "+scalar(col))
		}
	case *types.CreateTable:
		kv("tableName", v.TableName)
		out = append(out, renderColumnDefs(v.Columns, field)...)
	case *types.AddColumn:
		kv("tableName", v.TableName)
		out = append(out, renderColumnDefs(v.Columns, field)...)
	case *types.DropColumn:
		kv("tableName", v.TableName)
		kv("columnName", v.ColumnName)
	case *types.AddForeignKey:
		opt("constraintName", v.ConstraintName)
		kv("baseTableName", v.BaseTableName)
		kv("baseColumnNames", v.BaseColumnNames)
		kv("referencedTableName", v.ReferencedTableName)
		kv("referencedColumnNames", v.ReferencedColumnNames)
		opt("onDelete", v.OnDelete)
		opt("onUpdate", v.OnUpdate)
		opt("match", v.Match)
	case *types.DropForeignKey:
		opt("constraintName", v.ConstraintName)
		kv("baseTableName", v.BaseTableName)
		opt("baseColumnNames", v.BaseColumnNames)
		opt("referencedTableName", v.ReferencedTableName)
	case *types.AddUniqueConstraint:
		opt("constraintName", v.ConstraintName)
		kv("tableName", v.TableName)
		kv("columnNames", v.ColumnNames)
	case *types.ModifyDataType:
		kv("tableName", v.TableName)
		kv("columnName", v.ColumnName)
		kv("newDataType", v.NewDataType)
	case *types.RawChange:
		// A RawChange without raw lines carries only its scanned fields.
		for k, val := range v.Fields {
			kv(k, val)
		}
	}
	return out
}

func renderColumnDefs(cols []types.ColumnDef, field int) []string {
	out := []string{pad(field) + "columns:"}
	for _, col := range cols {
		out = append(out,
			pad(field+2)+"- column:",
			pad(field+6)+"name: "+scalar(col.Name))
		if col.Type != "" {
			out = append(out, pad(field+6)+"type: "+scalar(col.Type))
		}
		if col.Default != "" {
			out = append(out, pad(field+6)+"defaultValue: "+scalar(col.Default))
		}
		if col.PrimaryKey || col.Nullable != nil {
			out = append(out, pad(field+6)+"constraints:")
			if col.PrimaryKey {
				out = append(out, pad(field+8)+"primaryKey: true")
			}
			if col.Nullable != nil {
				if *col.Nullable {
					out = append(out, pad(field+8)+"nullable: true")
				} else {
					out = append(out, pad(field+8)+"nullable: false")
				}
			}
		}
	}
	return out
}
