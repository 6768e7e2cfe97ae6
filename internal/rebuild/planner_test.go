package rebuild

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/relift/internal/schema"
	"github.com/mesh-intelligence/relift/pkg/types"
)

func fk(base []string, refTable string, refCols []string) types.ForeignKeySpec {
	return types.ForeignKeySpec{
		BaseColumns:       base,
		ReferencedTable:   refTable,
		ReferencedColumns: refCols,
	}
}

func TestFinalForeignKeys(t *testing.T) {
	current := []types.ForeignKeySpec{
		fk([]string{"parent_id"}, "parent", []string{"id"}),
		fk([]string{"owner_id"}, "users", []string{"id"}),
	}

	tests := []struct {
		name  string
		adds  []types.ForeignKeySpec
		drops []types.ForeignKeySpec
		want  []types.ForeignKeySpec
	}{
		{
			name: "no changes keeps current",
			want: current,
		},
		{
			name:  "drop by base columns",
			drops: []types.ForeignKeySpec{fk([]string{"PARENT_ID"}, "", nil)},
			want:  []types.ForeignKeySpec{current[1]},
		},
		{
			name:  "drop by target",
			drops: []types.ForeignKeySpec{fk([]string{"something_else"}, "USERS", []string{"ID"})},
			want:  []types.ForeignKeySpec{current[0]},
		},
		{
			name: "add appends",
			adds: []types.ForeignKeySpec{fk([]string{"group_id"}, "groups", []string{"id"})},
			want: []types.ForeignKeySpec{
				current[0], current[1],
				fk([]string{"group_id"}, "groups", []string{"id"}),
			},
		},
		{
			name: "add over same base replaces",
			adds: []types.ForeignKeySpec{fk([]string{"parent_id"}, "folders", []string{"id"})},
			want: []types.ForeignKeySpec{
				current[1],
				fk([]string{"parent_id"}, "folders", []string{"id"}),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cur := append([]types.ForeignKeySpec(nil), current...)
			got := FinalForeignKeys(cur, tt.adds, tt.drops)
			assert.Equal(t, tt.want, got)

			seen := map[string]bool{}
			for _, f := range got {
				key := ""
				for _, c := range f.BaseColumns {
					key += c + ","
				}
				require.False(t, seen[key], "final plan carries duplicate base columns %q", key)
				seen[key] = true
			}
		})
	}
}

func TestAutoIncrementColumns(t *testing.T) {
	tests := []struct {
		name string
		ts   *schema.TableSchema
		want []string
	}{
		{
			name: "integer pk with autoincrement",
			ts: &schema.TableSchema{
				CreateSQL: `CREATE TABLE "t" ("Id" INTEGER PRIMARY KEY AUTOINCREMENT, "v" TEXT)`,
				Columns: []schema.Column{
					{Name: "Id", Type: "INTEGER", PrimaryKey: true},
					{Name: "v", Type: "TEXT"},
				},
			},
			want: []string{"Id"},
		},
		{
			name: "unquoted ddl",
			ts: &schema.TableSchema{
				CreateSQL: `CREATE TABLE t (id INTEGER PRIMARY KEY AUTOINCREMENT)`,
				Columns:   []schema.Column{{Name: "id", Type: "INTEGER", PrimaryKey: true}},
			},
			want: []string{"id"},
		},
		{
			name: "integer pk without autoincrement",
			ts: &schema.TableSchema{
				CreateSQL: `CREATE TABLE t (id INTEGER PRIMARY KEY)`,
				Columns:   []schema.Column{{Name: "id", Type: "INTEGER", PrimaryKey: true}},
			},
			want: nil,
		},
		{
			name: "non-integer pk never qualifies",
			ts: &schema.TableSchema{
				CreateSQL: `CREATE TABLE t (id BIGINT PRIMARY KEY, note TEXT)`,
				Columns:   []schema.Column{{Name: "id", Type: "BIGINT", PrimaryKey: true}},
			},
			want: nil,
		},
		{
			name: "composite pk never qualifies",
			ts: &schema.TableSchema{
				CreateSQL: `CREATE TABLE t (a INTEGER, b INTEGER, PRIMARY KEY (a, b)) -- AUTOINCREMENT`,
				Columns: []schema.Column{
					{Name: "a", Type: "INTEGER", PrimaryKey: true},
					{Name: "b", Type: "INTEGER", PrimaryKey: true},
				},
			},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AutoIncrementColumns(tt.ts))
		})
	}
}

func defaultOf(s string) sql.NullString {
	return sql.NullString{String: s, Valid: true}
}

func TestBuildCreateTable(t *testing.T) {
	tests := []struct {
		name    string
		ts      *schema.TableSchema
		fks     []types.ForeignKeySpec
		autoInc []string
		want    string
	}{
		{
			name: "single pk inline with autoincrement and defaults",
			ts: &schema.TableSchema{
				Columns: []schema.Column{
					{Name: "id", Type: "INTEGER", PrimaryKey: true},
					{Name: "state", Type: "TEXT", NotNull: true, Default: defaultOf("'open'")},
					{Name: "note", Type: "TEXT"},
				},
			},
			autoInc: []string{"id"},
			want: `CREATE TABLE "__tmp_t" (
  "id" INTEGER PRIMARY KEY AUTOINCREMENT,
  "state" TEXT NOT NULL DEFAULT 'open',
  "note" TEXT
)`,
		},
		{
			name: "composite pk as table constraint",
			ts: &schema.TableSchema{
				Columns: []schema.Column{
					{Name: "a", Type: "INTEGER", PrimaryKey: true, NotNull: true},
					{Name: "b", Type: "INTEGER", PrimaryKey: true, NotNull: true},
				},
			},
			want: `CREATE TABLE "__tmp_t" (
  "a" INTEGER NOT NULL,
  "b" INTEGER NOT NULL,
  PRIMARY KEY ("a","b")
)`,
		},
		{
			name: "foreign keys with actions and match",
			ts: &schema.TableSchema{
				Columns: []schema.Column{
					{Name: "id", Type: "INTEGER", PrimaryKey: true},
					{Name: "parent_id", Type: "INTEGER"},
				},
			},
			fks: []types.ForeignKeySpec{
				{
					BaseColumns:       []string{"parent_id"},
					ReferencedTable:   "parent",
					ReferencedColumns: []string{"id"},
					OnDelete:          "CASCADE",
					OnUpdate:          "NO ACTION",
					Match:             "SIMPLE",
				},
				{
					BaseColumns:       []string{"parent_id"},
					ReferencedTable:   "",
					ReferencedColumns: nil,
				},
			},
			want: `CREATE TABLE "__tmp_t" (
  "id" INTEGER PRIMARY KEY,
  "parent_id" INTEGER,
  FOREIGN KEY ("parent_id") REFERENCES "parent" ("id") ON DELETE CASCADE ON UPDATE NO ACTION MATCH SIMPLE
)`,
		},
		{
			name: "match none suppressed and quotes doubled",
			ts: &schema.TableSchema{
				Columns: []schema.Column{
					{Name: `we"ird`, Type: "TEXT", PrimaryKey: true},
				},
			},
			fks: []types.ForeignKeySpec{
				{
					BaseColumns:       []string{`we"ird`},
					ReferencedTable:   "parent",
					ReferencedColumns: []string{"id"},
					Match:             "NONE",
				},
			},
			want: `CREATE TABLE "__tmp_t" (
  "we""ird" TEXT PRIMARY KEY,
  FOREIGN KEY ("we""ird") REFERENCES "parent" ("id")
)`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildCreateTable("__tmp_t", tt.ts, tt.fks, tt.autoInc)
			assert.Equal(t, tt.want, got)
		})
	}
}
