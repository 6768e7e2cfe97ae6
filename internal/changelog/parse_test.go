package changelog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/relift/pkg/types"
)

const sampleDoc = `databaseChangeLog:
  - changeSet:
      id: 1700000000001-1
      author: generated
      changes:
        - createTable:
            tableName: parent
            columns:
              - column:
                  name: id
                  type: INTEGER
                  constraints:
                    primaryKey: true
                    nullable: false
  - changeSet:
      id: 1700000000001-2
      author: generated
      labels: fk
      changes:
        - addForeignKeyConstraint:
            baseTableName: child
            baseColumnNames: parent_id
            referencedTableName: parent
            referencedColumnNames: id
            constraintName: fk_child_parent
            onDelete: CASCADE
`

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{name: "two change sets", src: sampleDoc},
		{
			name: "header comment and blank lines",
			src: "# generated by diff\n\ndatabaseChangeLog:\n" +
				"  - changeSet:\n      id: a\n      author: b\n      changes:\n" +
				"        - dropColumn:\n            tableName: t\n            columnName: c\n",
		},
		{
			name: "no trailing newline",
			src: "databaseChangeLog:\n" +
				"  - changeSet:\n      id: a\n      author: b\n      changes:\n" +
				"        - sql: DROP VIEW v_old",
		},
		{
			name: "unknown change kind preserved",
			src: "databaseChangeLog:\n" +
				"  - changeSet:\n      id: a\n      author: b\n      changes:\n" +
				"        - renameSequence:\n            oldSequenceName: s1\n            newSequenceName: s2\n",
		},
		{
			name: "existing preconditions preserved",
			src: "databaseChangeLog:\n" +
				"  - changeSet:\n      id: a\n      author: b\n" +
				"      preConditions:\n        onFail: HALT\n        and:\n          - tableExists:\n              tableName: t\n" +
				"      changes:\n        - dropColumn:\n            tableName: t\n            columnName: c\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse(tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.src, Serialize(doc),
				"untouched document must round-trip byte-identically")
		})
	}
}

func TestParseTypedChanges(t *testing.T) {
	doc, err := Parse(sampleDoc)
	require.NoError(t, err)
	require.Len(t, doc.ChangeSets, 2)

	first := doc.ChangeSets[0]
	assert.Equal(t, "1700000000001-1", first.ID)
	assert.Equal(t, "generated", first.Author)
	require.Len(t, first.Changes, 1)

	ct, ok := first.Changes[0].(*types.CreateTable)
	require.True(t, ok, "expected a CreateTable, got %T", first.Changes[0])
	assert.Equal(t, "parent", ct.TableName)
	require.Len(t, ct.Columns, 1)
	assert.Equal(t, "id", ct.Columns[0].Name)
	assert.Equal(t, "INTEGER", ct.Columns[0].Type)
	assert.True(t, ct.Columns[0].PrimaryKey)
	require.NotNil(t, ct.Columns[0].Nullable)
	assert.False(t, *ct.Columns[0].Nullable)

	second := doc.ChangeSets[1]
	assert.Equal(t, "fk", second.Labels)
	fk, ok := second.Changes[0].(*types.AddForeignKey)
	require.True(t, ok, "expected an AddForeignKey, got %T", second.Changes[0])
	assert.Equal(t, "child", fk.BaseTableName)
	assert.Equal(t, "parent_id", fk.BaseColumnNames)
	assert.Equal(t, "parent", fk.ReferencedTableName)
	assert.Equal(t, "id", fk.ReferencedColumnNames)
	assert.Equal(t, "fk_child_parent", fk.ConstraintName)
	assert.Equal(t, "CASCADE", fk.OnDelete)
}

func TestParseQuoteStripping(t *testing.T) {
	src := "databaseChangeLog:\n" +
		"  - changeSet:\n      id: '1'\n      author: \"gen\"\n      changes:\n" +
		"        - addUniqueConstraint:\n            tableName: 'order item'\n            columnNames: \"a,b\"\n"
	doc, err := Parse(src)
	require.NoError(t, err)

	cs := doc.ChangeSets[0]
	assert.Equal(t, "1", cs.ID)
	assert.Equal(t, "gen", cs.Author)
	uq := cs.Changes[0].(*types.AddUniqueConstraint)
	assert.Equal(t, "order item", uq.TableName)
	assert.Equal(t, "a,b", uq.ColumnNames)
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{
			name: "missing top-level key",
			src:  "changeLog:\n  - changeSet:\n",
		},
		{
			name: "duplicate changeSet key",
			src: "databaseChangeLog:\n" +
				"  - changeSet:\n      id: a\n      id: b\n      author: x\n      changes:\n" +
				"        - dropColumn:\n            tableName: t\n            columnName: c\n",
		},
		{
			name: "duplicate change field",
			src: "databaseChangeLog:\n" +
				"  - changeSet:\n      id: a\n      author: x\n      changes:\n" +
				"        - dropColumn:\n            tableName: t\n            tableName: u\n            columnName: c\n",
		},
		{
			name: "indentation collapse in changes",
			src: "databaseChangeLog:\n" +
				"  - changeSet:\n      id: a\n      author: x\n      changes:\n" +
				"        - dropColumn:\n            tableName: t\n          - dropColumn:\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			require.Error(t, err)
			assert.True(t, errors.Is(err, types.ErrMalformedDocument),
				"expected ErrMalformedDocument, got %v", err)
		})
	}
}

func TestSerializeQuoting(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{name: "plain", value: "orders", want: "orders"},
		{name: "whitespace", value: "order item", want: "'order item'"},
		{name: "colon", value: "a:b", want: "'a:b'"},
		{name: "leading dash", value: "-x", want: "'-x'"},
		{name: "embedded single quote", value: "o'brien table", want: "'o''brien table'"},
		{name: "empty", value: "", want: "''"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scalar(tt.value))
		})
	}
}

func TestSerializeRenderedChangeSet(t *testing.T) {
	doc, err := Parse(sampleDoc)
	require.NoError(t, err)

	// Touch the second change set so it is re-rendered instead of spliced.
	cs := doc.ChangeSets[1]
	cs.Touch()
	cs.Preconditions = &types.Preconditions{
		OnFail:      types.MarkRan,
		OnError:     types.MarkRan,
		TableExists: []string{"child"},
	}

	out := Serialize(doc)
	assert.Contains(t, out, "      preConditions:\n"+
		"        onFail: MARK_RAN\n"+
		"        onError: MARK_RAN\n"+
		"        and:\n"+
		"          - tableExists:\n"+
		"              tableName: 'child'\n")
	// The untouched first change set is still spliced verbatim.
	assert.Contains(t, out, "            tableName: parent\n")
}
