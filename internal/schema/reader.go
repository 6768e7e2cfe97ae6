// Package schema reads the live SQLite schema and resolves requested
// identifiers against it.
package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/relift/pkg/types"
)

// Querier is the subset of database/sql the reader needs. *sql.DB,
// *sql.Conn, and *sql.Tx all satisfy it, so the reader works inside the
// executor's transaction as well as on a plain handle.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Column is one column as reported by PRAGMA table_info.
type Column struct {
	Name       string
	Type       string
	NotNull    bool
	Default    sql.NullString
	PrimaryKey bool
}

// Index is one index of a table. SQL is empty for indexes SQLite created
// implicitly for a primary key or unique column constraint; those are
// retained with Implicit set and skipped during recreation.
type Index struct {
	Name     string
	SQL      string
	Implicit bool
}

// Trigger is one trigger of a table with its raw CREATE statement.
type Trigger struct {
	Name string
	SQL  string
}

// TableSchema is the full observed state of one table, materialized once
// per rebuild and discarded afterwards.
type TableSchema struct {
	Name        string
	Columns     []Column
	CreateSQL   string
	ForeignKeys []types.ForeignKeySpec
	Indexes     []Index
	Triggers    []Trigger
}

// ColumnNames returns the column names in creation order.
func (ts *TableSchema) ColumnNames() []string {
	names := make([]string, len(ts.Columns))
	for i, c := range ts.Columns {
		names[i] = c.Name
	}
	return names
}

// PrimaryKeyColumns returns the names of the primary-key columns in
// creation order.
func (ts *TableSchema) PrimaryKeyColumns() []string {
	var pk []string
	for _, c := range ts.Columns {
		if c.PrimaryKey {
			pk = append(pk, c.Name)
		}
	}
	return pk
}

// Reader exposes the live schema of a SQLite database.
type Reader struct {
	q Querier
}

// NewReader wraps a Querier.
func NewReader(q Querier) *Reader {
	return &Reader{q: q}
}

// Quote double-quotes an identifier, doubling embedded quotes.
func Quote(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// ListTables returns the user-table names, excluding SQLite internals.
func (r *Reader) ListTables(ctx context.Context) ([]string, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// Columns returns the table's columns in the order SQLite reports them.
func (r *Reader) Columns(ctx context.Context, table string) ([]Column, error) {
	rows, err := r.q.QueryContext(ctx, "PRAGMA table_info("+Quote(table)+")")
	if err != nil {
		return nil, fmt.Errorf("table_info %s: %w", table, err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var (
			cid     int
			c       Column
			notnull int
			pk      int
		)
		if err := rows.Scan(&cid, &c.Name, &c.Type, &notnull, &c.Default, &pk); err != nil {
			return nil, fmt.Errorf("scan table_info row: %w", err)
		}
		c.NotNull = notnull == 1
		c.PrimaryKey = pk > 0
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

// CreateSQL returns the raw CREATE statement stored in sqlite_master.
// It fails with types.ErrTableNotFound when no row exists.
func (r *Reader) CreateSQL(ctx context.Context, table string) (string, error) {
	var create sql.NullString
	err := r.q.QueryRowContext(ctx,
		`SELECT sql FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&create)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%w: %s", types.ErrTableNotFound, table)
	}
	if err != nil {
		return "", fmt.Errorf("read create sql of %s: %w", table, err)
	}
	return create.String, nil
}

// ForeignKeys aggregates PRAGMA foreign_key_list: rows sharing an id form
// one spec, with from/to concatenated in seq order.
func (r *Reader) ForeignKeys(ctx context.Context, table string) ([]types.ForeignKeySpec, error) {
	rows, err := r.q.QueryContext(ctx, "PRAGMA foreign_key_list("+Quote(table)+")")
	if err != nil {
		return nil, fmt.Errorf("foreign_key_list %s: %w", table, err)
	}
	defer rows.Close()

	var (
		order []int
		byID  = map[int]*types.ForeignKeySpec{}
	)
	for rows.Next() {
		var (
			id, seq                            int
			refTable, from                     string
			to                                 sql.NullString
			onUpdate, onDelete, match          string
		)
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, fmt.Errorf("scan foreign_key_list row: %w", err)
		}
		spec, ok := byID[id]
		if !ok {
			spec = &types.ForeignKeySpec{
				ReferencedTable: refTable,
				OnDelete:        onDelete,
				OnUpdate:        onUpdate,
				Match:           match,
			}
			byID[id] = spec
			order = append(order, id)
		}
		spec.BaseColumns = append(spec.BaseColumns, from)
		spec.ReferencedColumns = append(spec.ReferencedColumns, to.String)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]types.ForeignKeySpec, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out, nil
}

// Indexes returns the table's indexes with their raw CREATE statements.
func (r *Reader) Indexes(ctx context.Context, table string) ([]Index, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT name, sql FROM sqlite_master WHERE type='index' AND tbl_name=? ORDER BY rowid`, table)
	if err != nil {
		return nil, fmt.Errorf("list indexes of %s: %w", table, err)
	}
	defer rows.Close()

	var out []Index
	for rows.Next() {
		var (
			name   string
			create sql.NullString
		)
		if err := rows.Scan(&name, &create); err != nil {
			return nil, fmt.Errorf("scan index row: %w", err)
		}
		out = append(out, Index{Name: name, SQL: create.String, Implicit: !create.Valid})
	}
	return out, rows.Err()
}

// Triggers returns the table's triggers with their raw CREATE statements.
func (r *Reader) Triggers(ctx context.Context, table string) ([]Trigger, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT name, sql FROM sqlite_master WHERE type='trigger' AND tbl_name=? ORDER BY rowid`, table)
	if err != nil {
		return nil, fmt.Errorf("list triggers of %s: %w", table, err)
	}
	defer rows.Close()

	var out []Trigger
	for rows.Next() {
		var t Trigger
		if err := rows.Scan(&t.Name, &t.SQL); err != nil {
			return nil, fmt.Errorf("scan trigger row: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// TableSchema materializes the whole observed state of one table.
func (r *Reader) TableSchema(ctx context.Context, table string) (*TableSchema, error) {
	ts := &TableSchema{Name: table}

	var err error
	if ts.CreateSQL, err = r.CreateSQL(ctx, table); err != nil {
		return nil, err
	}
	if ts.Columns, err = r.Columns(ctx, table); err != nil {
		return nil, err
	}
	if ts.ForeignKeys, err = r.ForeignKeys(ctx, table); err != nil {
		return nil, err
	}
	if ts.Indexes, err = r.Indexes(ctx, table); err != nil {
		return nil, err
	}
	if ts.Triggers, err = r.Triggers(ctx, table); err != nil {
		return nil, err
	}
	return ts, nil
}
