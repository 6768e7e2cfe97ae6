package types

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePlan() *RebuildPlan {
	p := NewRebuildPlan()
	p.Add(FKOperation{
		Kind:      FKAdd,
		BaseTable: "Zeta",
		Spec: ForeignKeySpec{
			BaseColumns:       []string{"b_id"},
			ReferencedTable:   "beta",
			ReferencedColumns: []string{"id"},
			OnDelete:          "CASCADE",
		},
	})
	p.Add(FKOperation{
		Kind:      FKDrop,
		BaseTable: "alpha",
		Spec: ForeignKeySpec{
			BaseColumns:     []string{"x_id"},
			ReferencedTable: "xray",
		},
	})
	p.Add(FKOperation{
		Kind:      FKAdd,
		BaseTable: "alpha",
		Spec: ForeignKeySpec{
			BaseColumns:       []string{"a_id"},
			ReferencedTable:   "aleph",
			ReferencedColumns: []string{"id"},
			Match:             "FULL",
		},
	})
	return p
}

func TestRebuildPlanOrdering(t *testing.T) {
	p := samplePlan()

	// First-appearance order for execution.
	assert.Equal(t, []string{"Zeta", "alpha"}, p.Tables())
	require.Len(t, p.Ops("alpha"), 2)
	assert.Equal(t, FKDrop, p.Ops("alpha")[0].Kind, "per-table ops keep document order")
}

func TestRebuildPlanCanonical(t *testing.T) {
	p := samplePlan()

	want := "TABLE=alpha\n" +
		"ADD a_id -> aleph(id) MATCH=FULL\n" +
		"DROP x_id -> xray()\n" +
		"TABLE=Zeta\n" +
		"ADD b_id -> beta(id) DEL=CASCADE\n"
	assert.Equal(t, want, p.Canonical(),
		"tables sorted case-insensitively, ops by kind then base columns")
}

func TestRebuildPlanHash(t *testing.T) {
	p := samplePlan()
	q := samplePlan()

	assert.Equal(t, p.Hash(), q.Hash(), "equal plans hash identically")
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{64}$`), p.Hash())

	q.Add(FKOperation{Kind: FKDrop, BaseTable: "alpha",
		Spec: ForeignKeySpec{BaseColumns: []string{"y_id"}}})
	assert.NotEqual(t, p.Hash(), q.Hash())
}

func TestRebuildPlanEmpty(t *testing.T) {
	assert.True(t, NewRebuildPlan().Empty())
	assert.False(t, samplePlan().Empty())
}
