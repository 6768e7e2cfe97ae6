package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// RebuildPlan aggregates the foreign-key operations extracted from a
// document, keyed by base table. Tables keep the order their first
// operation appeared in; per-table operations keep document order.
type RebuildPlan struct {
	order  []string
	tables map[string][]FKOperation
}

// NewRebuildPlan returns an empty plan.
func NewRebuildPlan() *RebuildPlan {
	return &RebuildPlan{tables: make(map[string][]FKOperation)}
}

// Add appends an operation under its base table.
func (p *RebuildPlan) Add(op FKOperation) {
	if _, ok := p.tables[op.BaseTable]; !ok {
		p.order = append(p.order, op.BaseTable)
	}
	p.tables[op.BaseTable] = append(p.tables[op.BaseTable], op)
}

// Empty reports whether the plan holds no operations.
func (p *RebuildPlan) Empty() bool { return len(p.order) == 0 }

// Tables returns the base tables in first-appearance order.
func (p *RebuildPlan) Tables() []string {
	return append([]string(nil), p.order...)
}

// Ops returns the operations for a base table in document order.
func (p *RebuildPlan) Ops(table string) []FKOperation {
	return append([]FKOperation(nil), p.tables[table]...)
}

// Canonical returns the deterministic textual serialization of the plan:
// tables sorted case-insensitively, and per table the operations sorted by
// kind then by lower-cased base columns. This text is the audit-hash
// preimage.
func (p *RebuildPlan) Canonical() string {
	tables := append([]string(nil), p.order...)
	sort.Slice(tables, func(i, j int) bool {
		return strings.ToLower(tables[i]) < strings.ToLower(tables[j])
	})

	var b strings.Builder
	for _, t := range tables {
		fmt.Fprintf(&b, "TABLE=%s\n", t)
		ops := append([]FKOperation(nil), p.tables[t]...)
		sort.SliceStable(ops, func(i, j int) bool {
			if ops[i].Kind != ops[j].Kind {
				return ops[i].Kind < ops[j].Kind
			}
			return strings.ToLower(strings.Join(ops[i].Spec.BaseColumns, ",")) <
				strings.ToLower(strings.Join(ops[j].Spec.BaseColumns, ","))
		})
		for _, op := range ops {
			fmt.Fprintf(&b, "%s %s -> %s(%s)", op.Kind,
				strings.Join(op.Spec.BaseColumns, ","),
				op.Spec.ReferencedTable,
				strings.Join(op.Spec.ReferencedColumns, ","))
			if op.Spec.OnDelete != "" {
				fmt.Fprintf(&b, " DEL=%s", op.Spec.OnDelete)
			}
			if op.Spec.OnUpdate != "" {
				fmt.Fprintf(&b, " UPD=%s", op.Spec.OnUpdate)
			}
			if op.Spec.Match != "" {
				fmt.Fprintf(&b, " MATCH=%s", op.Spec.Match)
			}
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Hash returns the lowercase hex SHA-256 of the canonical serialization.
func (p *RebuildPlan) Hash() string {
	sum := sha256.Sum256([]byte(p.Canonical()))
	return hex.EncodeToString(sum[:])
}
