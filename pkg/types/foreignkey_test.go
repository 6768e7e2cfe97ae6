package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForeignKeySpecEquality(t *testing.T) {
	base := ForeignKeySpec{
		BaseColumns:       []string{"order_id", "line_no"},
		ReferencedTable:   "Orders",
		ReferencedColumns: []string{"id", "line"},
	}

	tests := []struct {
		name       string
		other      ForeignKeySpec
		wantBase   bool
		wantTarget bool
	}{
		{
			name: "identical",
			other: ForeignKeySpec{
				BaseColumns:       []string{"order_id", "line_no"},
				ReferencedTable:   "Orders",
				ReferencedColumns: []string{"id", "line"},
			},
			wantBase:   true,
			wantTarget: true,
		},
		{
			name: "case and whitespace insensitive",
			other: ForeignKeySpec{
				BaseColumns:       []string{" ORDER_ID ", "Line_No"},
				ReferencedTable:   "orders",
				ReferencedColumns: []string{"ID", " line"},
			},
			wantBase:   true,
			wantTarget: true,
		},
		{
			name: "different base columns",
			other: ForeignKeySpec{
				BaseColumns:       []string{"customer_id"},
				ReferencedTable:   "orders",
				ReferencedColumns: []string{"id", "line"},
			},
			wantBase:   false,
			wantTarget: true,
		},
		{
			name: "different referenced table",
			other: ForeignKeySpec{
				BaseColumns:       []string{"order_id", "line_no"},
				ReferencedTable:   "invoices",
				ReferencedColumns: []string{"id", "line"},
			},
			wantBase:   true,
			wantTarget: false,
		},
		{
			name: "column count mismatch",
			other: ForeignKeySpec{
				BaseColumns:       []string{"order_id"},
				ReferencedTable:   "orders",
				ReferencedColumns: []string{"id"},
			},
			wantBase:   false,
			wantTarget: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantBase, base.EqualByBase(tt.other))
			assert.Equal(t, tt.wantTarget, base.EqualByTarget(tt.other))
		})
	}
}

func TestSplitColumnList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SplitColumnList("a, b"))
	assert.Equal(t, []string{"one"}, SplitColumnList("one"))
	assert.Nil(t, SplitColumnList(""))
	assert.Equal(t, []string{"x"}, SplitColumnList(" ,x, "))
}
