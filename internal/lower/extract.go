// Package lower rewrites a change document into the subset SQLite can
// execute natively, extracting foreign-key operations into a rebuild plan
// and reporting dropped type changes.
package lower

import (
	"github.com/mesh-intelligence/relift/pkg/types"
)

// ExtractForeignKeyOps removes every addForeignKeyConstraint and
// dropForeignKeyConstraint from the document and aggregates them into a
// rebuild plan keyed by base table. Operations keep document order.
// ChangeSets left with no changes are pruned from the document.
func ExtractForeignKeyOps(doc *types.ChangeDocument) *types.RebuildPlan {
	plan := types.NewRebuildPlan()

	kept := doc.ChangeSets[:0]
	for _, cs := range doc.ChangeSets {
		changes := cs.Changes[:0]
		for _, c := range cs.Changes {
			switch v := c.(type) {
			case *types.AddForeignKey:
				plan.Add(types.FKOperation{
					Kind:           types.FKAdd,
					BaseTable:      v.BaseTableName,
					ConstraintName: v.ConstraintName,
					Spec: types.ForeignKeySpec{
						BaseColumns:       types.SplitColumnList(v.BaseColumnNames),
						ReferencedTable:   v.ReferencedTableName,
						ReferencedColumns: types.SplitColumnList(v.ReferencedColumnNames),
						OnDelete:          v.OnDelete,
						OnUpdate:          v.OnUpdate,
						Match:             v.Match,
					},
				})
				cs.Touch()
			case *types.DropForeignKey:
				plan.Add(types.FKOperation{
					Kind:           types.FKDrop,
					BaseTable:      v.BaseTableName,
					ConstraintName: v.ConstraintName,
					Spec: types.ForeignKeySpec{
						BaseColumns:     types.SplitColumnList(v.BaseColumnNames),
						ReferencedTable: v.ReferencedTableName,
					},
				})
				cs.Touch()
			default:
				changes = append(changes, c)
			}
		}
		cs.Changes = changes
		if len(cs.Changes) > 0 {
			kept = append(kept, cs)
		}
	}
	doc.ChangeSets = kept

	return plan
}
