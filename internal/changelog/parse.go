// Package changelog parses and serializes the line-oriented block-mapped
// changelog format. Parsed blocks keep their raw source lines, so untouched
// ChangeSets round-trip byte-identically; only modified blocks are
// re-rendered.
package changelog

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mesh-intelligence/relift/pkg/types"
)

var (
	reChangeSetStart = regexp.MustCompile(`^(\s*)-\s+changeSet:\s*$`)
	reItemStart      = regexp.MustCompile(`^(\s*)-\s+([A-Za-z][A-Za-z0-9]*):\s*$`)
	reItemScalar     = regexp.MustCompile(`^(\s*)-\s+([A-Za-z][A-Za-z0-9]*):\s+\S`)
	reKeyValue       = regexp.MustCompile(`^(\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:\s*(.*?)\s*$`)
)

// Parse interprets src as a changelog document. It fails with
// types.ErrMalformedDocument when the top-level key is absent, a mapping
// key repeats within one scope, or indentation collapses mid-block. Blocks
// kept only as raw lines (preConditions, unknown change kinds, column
// constraints, and nested content the parser does not interpret) are not
// checked for repeated keys.
func Parse(src string) (*types.ChangeDocument, error) {
	doc := &types.ChangeDocument{
		TrailingNewline: strings.HasSuffix(src, "\n"),
	}

	lines := strings.Split(src, "\n")
	if doc.TrailingNewline {
		lines = lines[:len(lines)-1]
	}

	keyIdx := -1
	for i, l := range lines {
		if strings.TrimRight(l, " ") == "databaseChangeLog:" {
			keyIdx = i
			break
		}
		if strings.TrimSpace(l) != "" && !strings.HasPrefix(strings.TrimSpace(l), "#") {
			return nil, fmt.Errorf("%w: unexpected content before databaseChangeLog key at line %d",
				types.ErrMalformedDocument, i+1)
		}
	}
	if keyIdx < 0 {
		return nil, fmt.Errorf("%w: missing databaseChangeLog key", types.ErrMalformedDocument)
	}

	// Header keeps everything through the key line, plus any blank or
	// comment lines before the first changeSet.
	bodyStart := keyIdx + 1
	for bodyStart < len(lines) && !reChangeSetStart.MatchString(lines[bodyStart]) {
		if strings.TrimSpace(lines[bodyStart]) != "" && !strings.HasPrefix(strings.TrimSpace(lines[bodyStart]), "#") {
			return nil, fmt.Errorf("%w: expected a changeSet entry at line %d",
				types.ErrMalformedDocument, bodyStart+1)
		}
		bodyStart++
	}
	doc.Header = append([]string(nil), lines[:bodyStart]...)

	for i := bodyStart; i < len(lines); {
		if !reChangeSetStart.MatchString(lines[i]) {
			return nil, fmt.Errorf("%w: expected a changeSet entry at line %d",
				types.ErrMalformedDocument, i+1)
		}
		end := i + 1
		for end < len(lines) && !reChangeSetStart.MatchString(lines[end]) {
			end++
		}
		cs, err := parseChangeSet(lines[i:end], i+1)
		if err != nil {
			return nil, err
		}
		doc.ChangeSets = append(doc.ChangeSets, cs)
		i = end
	}

	return doc, nil
}

func indentOf(s string) int {
	n := 0
	for n < len(s) && s[n] == ' ' {
		n++
	}
	return n
}

// unquote strips one layer of surrounding single or double quotes and
// unescapes doubled single quotes inside single-quoted scalars.
func unquote(v string) string {
	if len(v) >= 2 && v[0] == '\'' && v[len(v)-1] == '\'' {
		return strings.ReplaceAll(v[1:len(v)-1], "''", "'")
	}
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		return v[1 : len(v)-1]
	}
	return v
}

func parseBool(v string) bool {
	return strings.EqualFold(v, "true")
}

// parseChangeSet interprets one "- changeSet:" block. base is the 1-based
// line number of the dash line, used in error messages.
func parseChangeSet(block []string, base int) (*types.ChangeSet, error) {
	cs := &types.ChangeSet{Raw: append([]string(nil), block...)}
	cs.Layout.Dash = indentOf(block[0])

	fieldIndent := -1
	seen := map[string]bool{}

	i := 1
	for i < len(block) {
		line := block[i]
		if strings.TrimSpace(line) == "" {
			i++
			continue
		}
		ind := indentOf(line)
		if fieldIndent < 0 {
			if ind <= cs.Layout.Dash {
				return nil, fmt.Errorf("%w: changeSet at line %d has no fields",
					types.ErrMalformedDocument, base)
			}
			fieldIndent = ind
			cs.Layout.Field = ind
		}
		if ind < fieldIndent {
			return nil, fmt.Errorf("%w: indentation collapses at line %d",
				types.ErrMalformedDocument, base+i)
		}
		if ind > fieldIndent {
			return nil, fmt.Errorf("%w: unexpected indentation at line %d",
				types.ErrMalformedDocument, base+i)
		}

		kv := reKeyValue.FindStringSubmatch(line)
		if kv == nil {
			return nil, fmt.Errorf("%w: expected a mapping key at line %d",
				types.ErrMalformedDocument, base+i)
		}
		key, value := kv[2], kv[3]
		if seen[key] {
			return nil, fmt.Errorf("%w: duplicate key %q at line %d",
				types.ErrMalformedDocument, key, base+i)
		}
		seen[key] = true

		switch key {
		case "id":
			cs.ID = unquote(value)
			i++
		case "author":
			cs.Author = unquote(value)
			i++
		case "labels":
			cs.Labels = unquote(value)
			i++
		case "preConditions":
			end := blockEnd(block, i+1, fieldIndent)
			cs.Preconditions = &types.Preconditions{
				Raw: append([]string(nil), block[i:end]...),
			}
			i = end
		case "changes":
			changes, itemIndent, end, err := parseChanges(block, i+1, fieldIndent, base)
			if err != nil {
				return nil, err
			}
			cs.Changes = changes
			cs.Layout.Item = itemIndent
			i = end
		default:
			// Unknown changeSet field: kept only through the raw block.
			i = blockEnd(block, i+1, fieldIndent)
		}
	}

	if cs.Layout.Item == 0 {
		cs.Layout.Item = cs.Layout.Field + 2
	}
	return cs, nil
}

// blockEnd returns the index of the first line at or below baseIndent,
// skipping blanks.
func blockEnd(lines []string, from, baseIndent int) int {
	for i := from; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}
		if indentOf(lines[i]) <= baseIndent {
			return i
		}
	}
	return len(lines)
}

// parseChanges reads the sequence under a "changes:" key. It returns the
// parsed changes, the observed item indentation, and the index just past
// the sequence.
func parseChanges(block []string, from, fieldIndent, base int) ([]types.Change, int, int, error) {
	itemIndent := -1
	var changes []types.Change

	i := from
	for i < len(block) {
		line := block[i]
		if strings.TrimSpace(line) == "" {
			i++
			continue
		}
		ind := indentOf(line)
		if ind <= fieldIndent {
			break
		}
		m := reItemStart.FindStringSubmatch(line)
		if m == nil {
			// An inline scalar item ("- sql: DROP VIEW v") passes through
			// as an opaque change.
			if sm := reItemScalar.FindStringSubmatch(line); sm != nil {
				if itemIndent < 0 {
					itemIndent = ind
				}
				end := i + 1
				for end < len(block) {
					if strings.TrimSpace(block[end]) == "" {
						end++
						continue
					}
					if indentOf(block[end]) <= itemIndent {
						break
					}
					end++
				}
				changes = append(changes, &types.RawChange{
					Key:    sm[2],
					Fields: map[string]string{},
					Raw:    append([]string(nil), block[i:end]...),
				})
				i = end
				continue
			}
			return nil, 0, 0, fmt.Errorf("%w: expected a change entry at line %d",
				types.ErrMalformedDocument, base+i)
		}
		if itemIndent < 0 {
			itemIndent = ind
		} else if ind != itemIndent {
			return nil, 0, 0, fmt.Errorf("%w: indentation collapses at line %d",
				types.ErrMalformedDocument, base+i)
		}

		end := i + 1
		for end < len(block) {
			if strings.TrimSpace(block[end]) == "" {
				end++
				continue
			}
			if indentOf(block[end]) <= itemIndent {
				break
			}
			end++
		}
		c, err := parseChange(m[2], block[i:end], base+i)
		if err != nil {
			return nil, 0, 0, err
		}
		changes = append(changes, c)
		i = end
	}

	if itemIndent < 0 {
		itemIndent = fieldIndent + 2
	}
	return changes, itemIndent, i, nil
}

// parseChange interprets one "- <kind>:" block into a typed change. Kinds
// without a concrete type land in RawChange with a best-effort field scan.
func parseChange(kind string, block []string, base int) (types.Change, error) {
	raw := append([]string(nil), block...)

	switch kind {
	case "createTable":
		fields, cols, err := parseTableFields(block, base)
		if err != nil {
			return nil, err
		}
		return &types.CreateTable{TableName: fields["tableName"], Columns: cols, Raw: raw}, nil
	case "addColumn":
		fields, cols, err := parseTableFields(block, base)
		if err != nil {
			return nil, err
		}
		return &types.AddColumn{TableName: fields["tableName"], Columns: cols, Raw: raw}, nil
	case "dropColumn":
		fields, err := parseFlatFields(block, base)
		if err != nil {
			return nil, err
		}
		return &types.DropColumn{
			TableName:  fields["tableName"],
			ColumnName: fields["columnName"],
			Raw:        raw,
		}, nil
	case "addForeignKeyConstraint":
		fields, err := parseFlatFields(block, base)
		if err != nil {
			return nil, err
		}
		return &types.AddForeignKey{
			BaseTableName:         fields["baseTableName"],
			BaseColumnNames:       fields["baseColumnNames"],
			ReferencedTableName:   fields["referencedTableName"],
			ReferencedColumnNames: fields["referencedColumnNames"],
			ConstraintName:        fields["constraintName"],
			OnDelete:              fields["onDelete"],
			OnUpdate:              fields["onUpdate"],
			Match:                 fields["match"],
			Raw:                   raw,
		}, nil
	case "dropForeignKeyConstraint":
		fields, err := parseFlatFields(block, base)
		if err != nil {
			return nil, err
		}
		return &types.DropForeignKey{
			BaseTableName:       fields["baseTableName"],
			ConstraintName:      fields["constraintName"],
			BaseColumnNames:     fields["baseColumnNames"],
			ReferencedTableName: fields["referencedTableName"],
			Raw:                 raw,
		}, nil
	case "addUniqueConstraint":
		fields, err := parseFlatFields(block, base)
		if err != nil {
			return nil, err
		}
		return &types.AddUniqueConstraint{
			TableName:      fields["tableName"],
			ColumnNames:    fields["columnNames"],
			ConstraintName: fields["constraintName"],
			Raw:            raw,
		}, nil
	case "modifyDataType":
		fields, err := parseFlatFields(block, base)
		if err != nil {
			return nil, err
		}
		return &types.ModifyDataType{
			TableName:   fields["tableName"],
			ColumnName:  fields["columnName"],
			NewDataType: fields["newDataType"],
			Raw:         raw,
		}, nil
	case "createIndex":
		fields, cols, err := parseTableFields(block, base)
		if err != nil {
			return nil, err
		}
		ci := &types.CreateIndex{
			TableName: fields["tableName"],
			IndexName: fields["indexName"],
			Unique:    parseBool(fields["unique"]),
			Raw:       raw,
		}
		for _, c := range cols {
			ci.Columns = append(ci.Columns, c.Name)
		}
		return ci, nil
	default:
		fields := map[string]string{}
		for _, l := range block[1:] {
			if kv := reKeyValue.FindStringSubmatch(l); kv != nil {
				if _, ok := fields[kv[2]]; !ok {
					fields[kv[2]] = unquote(kv[3])
				}
			}
		}
		return &types.RawChange{Key: kind, Fields: fields, Raw: raw}, nil
	}
}

// parseFlatFields reads the scalar keys directly under a change's dash
// line, enforcing unique keys and consistent indentation.
func parseFlatFields(block []string, base int) (map[string]string, error) {
	fields := map[string]string{}
	fieldIndent := -1
	for i := 1; i < len(block); i++ {
		line := block[i]
		if strings.TrimSpace(line) == "" {
			continue
		}
		ind := indentOf(line)
		if fieldIndent < 0 {
			fieldIndent = ind
		}
		if ind < fieldIndent {
			return nil, fmt.Errorf("%w: indentation collapses at line %d",
				types.ErrMalformedDocument, base+i)
		}
		if ind > fieldIndent {
			// Nested content under a field; not interpreted here.
			continue
		}
		kv := reKeyValue.FindStringSubmatch(line)
		if kv == nil {
			return nil, fmt.Errorf("%w: expected a mapping key at line %d",
				types.ErrMalformedDocument, base+i)
		}
		if _, dup := fields[kv[2]]; dup {
			return nil, fmt.Errorf("%w: duplicate key %q at line %d",
				types.ErrMalformedDocument, kv[2], base+i)
		}
		fields[kv[2]] = unquote(kv[3])
	}
	return fields, nil
}

// parseTableFields reads a change block that carries a columns sequence
// (createTable, addColumn, createIndex) and returns both the scalar fields
// and the parsed column definitions.
func parseTableFields(block []string, base int) (map[string]string, []types.ColumnDef, error) {
	fields := map[string]string{}
	var cols []types.ColumnDef
	fieldIndent := -1

	i := 1
	for i < len(block) {
		line := block[i]
		if strings.TrimSpace(line) == "" {
			i++
			continue
		}
		ind := indentOf(line)
		if fieldIndent < 0 {
			fieldIndent = ind
		}
		if ind < fieldIndent {
			return nil, nil, fmt.Errorf("%w: indentation collapses at line %d",
				types.ErrMalformedDocument, base+i)
		}
		if ind > fieldIndent {
			return nil, nil, fmt.Errorf("%w: unexpected indentation at line %d",
				types.ErrMalformedDocument, base+i)
		}
		kv := reKeyValue.FindStringSubmatch(line)
		if kv == nil {
			return nil, nil, fmt.Errorf("%w: expected a mapping key at line %d",
				types.ErrMalformedDocument, base+i)
		}
		if _, dup := fields[kv[2]]; dup {
			return nil, nil, fmt.Errorf("%w: duplicate key %q at line %d",
				types.ErrMalformedDocument, kv[2], base+i)
		}
		if kv[2] == "columns" {
			fields["columns"] = ""
			end := blockEnd(block, i+1, fieldIndent)
			parsed, err := parseColumns(block[i+1:end], base+i+1)
			if err != nil {
				return nil, nil, err
			}
			cols = parsed
			i = end
			continue
		}
		fields[kv[2]] = unquote(kv[3])
		i++
	}
	return fields, cols, nil
}

// parseColumns reads a sequence of "- column:" items.
func parseColumns(lines []string, base int) ([]types.ColumnDef, error) {
	var cols []types.ColumnDef
	itemIndent := -1

	i := 0
	for i < len(lines) {
		line := lines[i]
		if strings.TrimSpace(line) == "" {
			i++
			continue
		}
		ind := indentOf(line)
		m := reItemStart.FindStringSubmatch(line)
		if m == nil || m[2] != "column" {
			return nil, fmt.Errorf("%w: expected a column entry at line %d",
				types.ErrMalformedDocument, base+i)
		}
		if itemIndent < 0 {
			itemIndent = ind
		} else if ind != itemIndent {
			return nil, fmt.Errorf("%w: indentation collapses at line %d",
				types.ErrMalformedDocument, base+i)
		}

		end := i + 1
		for end < len(lines) {
			if strings.TrimSpace(lines[end]) == "" {
				end++
				continue
			}
			if indentOf(lines[end]) <= itemIndent {
				break
			}
			end++
		}
		col, err := parseColumn(lines[i:end], base+i)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
		i = end
	}
	return cols, nil
}

func parseColumn(block []string, base int) (types.ColumnDef, error) {
	var col types.ColumnDef
	fieldIndent := -1
	seen := map[string]bool{}

	i := 1
	for i < len(block) {
		line := block[i]
		if strings.TrimSpace(line) == "" {
			i++
			continue
		}
		ind := indentOf(line)
		if fieldIndent < 0 {
			fieldIndent = ind
		}
		if ind != fieldIndent {
			return col, fmt.Errorf("%w: unexpected indentation at line %d",
				types.ErrMalformedDocument, base+i)
		}
		kv := reKeyValue.FindStringSubmatch(line)
		if kv == nil {
			return col, fmt.Errorf("%w: expected a mapping key at line %d",
				types.ErrMalformedDocument, base+i)
		}
		key, value := kv[2], unquote(kv[3])
		if seen[key] {
			return col, fmt.Errorf("%w: duplicate key %q at line %d",
				types.ErrMalformedDocument, key, base+i)
		}
		seen[key] = true
		switch key {
		case "name":
			col.Name = value
			i++
		case "type":
			col.Type = value
			i++
		case "defaultValue", "defaultValueNumeric", "defaultValueComputed", "defaultValueBoolean":
			col.Default = value
			i++
		case "constraints":
			end := blockEnd(block, i+1, fieldIndent)
			for _, l := range block[i+1 : end] {
				ckv := reKeyValue.FindStringSubmatch(l)
				if ckv == nil {
					continue
				}
				switch ckv[2] {
				case "primaryKey":
					col.PrimaryKey = parseBool(unquote(ckv[3]))
				case "nullable":
					v := parseBool(unquote(ckv[3]))
					col.Nullable = &v
				}
			}
			i = end
		default:
			i = blockEnd(block, i+1, fieldIndent)
		}
	}
	return col, nil
}
