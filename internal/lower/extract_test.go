package lower

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/relift/internal/changelog"
	"github.com/mesh-intelligence/relift/pkg/types"
)

func TestExtractForeignKeyOps(t *testing.T) {
	src := "databaseChangeLog:\n" +
		"  - changeSet:\n      id: a\n      author: x\n      changes:\n" +
		"        - addForeignKeyConstraint:\n" +
		"            baseTableName: child\n" +
		"            baseColumnNames: parent_id\n" +
		"            referencedTableName: parent\n" +
		"            referencedColumnNames: id\n" +
		"            onDelete: CASCADE\n" +
		"        - dropColumn:\n            tableName: child\n            columnName: legacy\n" +
		"  - changeSet:\n      id: b\n      author: x\n      changes:\n" +
		"        - dropForeignKeyConstraint:\n" +
		"            baseTableName: child\n" +
		"            baseColumnNames: other_id\n" +
		"  - changeSet:\n      id: c\n      author: x\n      changes:\n" +
		"        - addForeignKeyConstraint:\n" +
		"            baseTableName: orders\n" +
		"            baseColumnNames: customer_id\n" +
		"            referencedTableName: customers\n" +
		"            referencedColumnNames: id\n"

	doc, err := changelog.Parse(src)
	require.NoError(t, err)

	plan := ExtractForeignKeyOps(doc)

	// Change sets b and c became empty and were pruned.
	require.Len(t, doc.ChangeSets, 1)
	assert.Equal(t, "a", doc.ChangeSets[0].ID)
	require.Len(t, doc.ChangeSets[0].Changes, 1)
	assert.Equal(t, "dropColumn", doc.ChangeSets[0].Changes[0].Kind())

	// Tables appear in first-operation order; per-table ops keep document
	// order.
	assert.Equal(t, []string{"child", "orders"}, plan.Tables())

	childOps := plan.Ops("child")
	require.Len(t, childOps, 2)
	assert.Equal(t, types.FKAdd, childOps[0].Kind)
	assert.Equal(t, []string{"parent_id"}, childOps[0].Spec.BaseColumns)
	assert.Equal(t, "parent", childOps[0].Spec.ReferencedTable)
	assert.Equal(t, "CASCADE", childOps[0].Spec.OnDelete)
	assert.Equal(t, types.FKDrop, childOps[1].Kind)
	assert.Equal(t, []string{"other_id"}, childOps[1].Spec.BaseColumns)

	orderOps := plan.Ops("orders")
	require.Len(t, orderOps, 1)
	assert.Equal(t, types.FKAdd, orderOps[0].Kind)
}

func TestExtractLeavesDocumentsWithoutFkOpsAlone(t *testing.T) {
	src := "databaseChangeLog:\n" +
		"  - changeSet:\n      id: a\n      author: x\n      changes:\n" +
		"        - dropColumn:\n            tableName: t\n            columnName: c\n"

	doc, err := changelog.Parse(src)
	require.NoError(t, err)

	plan := ExtractForeignKeyOps(doc)
	assert.True(t, plan.Empty())
	assert.Equal(t, src, changelog.Serialize(doc))
}
