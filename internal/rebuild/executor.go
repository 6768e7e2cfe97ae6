package rebuild

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mesh-intelligence/relift/internal/schema"
	"github.com/mesh-intelligence/relift/pkg/types"
)

// Temp and backup name prefixes used during a rebuild.
const (
	tmpPrefix = "__tmp_"
	bakPrefix = "__bak_"
)

// Executor replaces a table's definition with a freshly planned CREATE
// TABLE while preserving data, indexes, and triggers. It owns a dedicated
// connection for the duration of each rebuild; PRAGMA foreign_keys is
// restored on every exit path and never leaks to other connections.
type Executor struct {
	db  *sql.DB
	log *slog.Logger

	// beforeExec, when set, runs before every statement. Tests use it to
	// inject failures at precise points of the sequence.
	beforeExec func(stmt string) error
}

// NewExecutor returns an Executor over db. A nil logger falls back to
// slog.Default().
func NewExecutor(db *sql.DB, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{db: db, log: logger}
}

type execConn struct {
	e    *Executor
	conn *sql.Conn
}

func (c *execConn) exec(ctx context.Context, stmt string) error {
	if c.e.beforeExec != nil {
		if err := c.e.beforeExec(stmt); err != nil {
			return err
		}
	}
	_, err := c.conn.ExecContext(ctx, stmt)
	return err
}

// Rebuild applies the foreign-key adds and drops to table by rebuilding it
// in place: create temp, copy rows, swap via rename with a backup, drop the
// backup, recreate indexes and triggers, then verify referential integrity.
// The whole sequence runs in one transaction; on failure it is rolled back
// and the original table remains intact.
func (e *Executor) Rebuild(ctx context.Context, table string, adds, drops []types.ForeignKeySpec) error {
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return &types.RebuildError{Table: table, Step: "open connection", Err: err}
	}
	defer conn.Close()

	c := &execConn{e: e, conn: conn}

	if err := c.exec(ctx, "PRAGMA foreign_keys=OFF"); err != nil {
		return &types.RebuildError{Table: table, Step: "disable foreign keys", Err: err}
	}
	// Older-style renames keep references to the original name intact.
	// Not every SQLite build knows this pragma, so failure is tolerated.
	_ = c.exec(ctx, "PRAGMA legacy_alter_table=ON")

	// Restore the connection-level setting whichever way the rebuild ends.
	defer func() {
		_ = c.exec(ctx, "PRAGMA foreign_keys=ON")
	}()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return &types.RebuildError{Table: table, Step: "begin transaction", Err: err}
	}

	if err := e.rebuildInTx(ctx, tx, table, adds, drops); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return &types.RebuildError{Table: table, Step: "commit", Err: err}
	}
	return nil
}

func (e *Executor) rebuildInTx(ctx context.Context, tx *sql.Tx, table string, adds, drops []types.ForeignKeySpec) error {
	fail := func(step string, err error) error {
		var idErr *types.IdentifierNotFoundError
		var intErr *types.IntegrityError
		if errors.As(err, &idErr) || errors.As(err, &intErr) ||
			errors.Is(err, types.ErrTableMissing) || errors.Is(err, types.ErrTableNotFound) {
			return err
		}
		return &types.RebuildError{Table: table, Step: step, Err: err}
	}

	exec := func(stmt string) error {
		if e.beforeExec != nil {
			if err := e.beforeExec(stmt); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx, stmt)
		return err
	}

	reader := schema.NewReader(tx)

	tables, err := reader.ListTables(ctx)
	if err != nil {
		return fail("list tables", err)
	}
	physical, err := schema.Resolve(table, tables)
	if err != nil {
		return fmt.Errorf("%w: %s", types.ErrTableMissing, table)
	}

	tmpName := tmpPrefix + physical
	bakName := bakPrefix + physical
	if err := exec("DROP TABLE IF EXISTS " + schema.Quote(tmpName)); err != nil {
		return fail("drop residual temp table", err)
	}
	if err := exec("DROP TABLE IF EXISTS " + schema.Quote(bakName)); err != nil {
		return fail("drop residual backup table", err)
	}

	ts, err := reader.TableSchema(ctx, physical)
	if err != nil {
		return fail("read table schema", err)
	}
	if len(ts.Columns) == 0 {
		return fmt.Errorf("%w: %s has no columns", types.ErrTableMissing, physical)
	}

	normAdds, err := normalizeAdds(ctx, reader, ts, tables, adds)
	if err != nil {
		return fail("normalize identifiers", err)
	}

	final := FinalForeignKeys(ts.ForeignKeys, normAdds, drops)
	autoInc := AutoIncrementColumns(ts)

	e.log.Debug("rebuilding table",
		"table", physical,
		"foreign_keys", len(final),
		"autoincrement", len(autoInc) > 0)

	if err := exec(BuildCreateTable(tmpName, ts, final, autoInc)); err != nil {
		return fail("create temp table", err)
	}

	colList := quoteJoin(ts.ColumnNames())
	copyStmt := "INSERT INTO " + schema.Quote(tmpName) + " (" + colList + ")" +
		" SELECT " + colList + " FROM " + schema.Quote(physical)
	if err := exec(copyStmt); err != nil {
		return fail("copy rows", err)
	}

	rename := func(from, to string) error {
		return withForeignKeysOff(ctx, tx, exec, func() error {
			return exec("ALTER TABLE " + schema.Quote(from) + " RENAME TO " + schema.Quote(to))
		})
	}
	if err := rename(physical, bakName); err != nil {
		return fail("rename original to backup", err)
	}
	if err := rename(tmpName, physical); err != nil {
		return fail("rename temp to original", err)
	}

	err = withForeignKeysOff(ctx, tx, exec, func() error {
		return exec("DROP TABLE " + schema.Quote(bakName))
	})
	if err != nil {
		return fail("drop backup table", err)
	}

	for _, idx := range ts.Indexes {
		if idx.Implicit {
			continue
		}
		if err := exec(idx.SQL); err != nil {
			return fail("recreate index "+idx.Name, err)
		}
	}
	for _, trg := range ts.Triggers {
		if err := exec(trg.SQL); err != nil {
			return fail("recreate trigger "+trg.Name, err)
		}
	}

	if err := exec("PRAGMA foreign_keys=ON"); err != nil {
		return fail("enable foreign keys", err)
	}
	if err := checkIntegrity(ctx, tx, reader); err != nil {
		return fail("foreign key check", err)
	}
	return nil
}

// withForeignKeysOff turns the pragma off around fn when it is currently
// on, restoring it afterwards.
func withForeignKeysOff(ctx context.Context, tx *sql.Tx, exec func(string) error, fn func() error) error {
	var on int
	if err := tx.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&on); err != nil {
		return err
	}
	if on == 1 {
		if err := exec("PRAGMA foreign_keys=OFF"); err != nil {
			return err
		}
		defer func() { _ = exec("PRAGMA foreign_keys=ON") }()
	}
	return fn()
}

// normalizeAdds resolves the referenced table, referenced columns, and base
// columns of each added foreign key against the live schema.
func normalizeAdds(ctx context.Context, reader *schema.Reader, ts *schema.TableSchema, tables []string, adds []types.ForeignKeySpec) ([]types.ForeignKeySpec, error) {
	baseCols := ts.ColumnNames()

	out := make([]types.ForeignKeySpec, 0, len(adds))
	for _, add := range adds {
		spec := add
		spec.BaseColumns = append([]string(nil), add.BaseColumns...)
		spec.ReferencedColumns = append([]string(nil), add.ReferencedColumns...)

		for i, col := range spec.BaseColumns {
			resolved, err := schema.Resolve(strings.TrimSpace(col), baseCols)
			if err != nil {
				return nil, err
			}
			spec.BaseColumns[i] = resolved
		}

		if spec.ReferencedTable != "" {
			refTable, err := schema.Resolve(spec.ReferencedTable, tables)
			if err != nil {
				return nil, err
			}
			spec.ReferencedTable = refTable

			refCols, err := reader.Columns(ctx, refTable)
			if err != nil {
				return nil, err
			}
			refNames := make([]string, len(refCols))
			for i, c := range refCols {
				refNames[i] = c.Name
			}
			for i, col := range spec.ReferencedColumns {
				resolved, err := schema.Resolve(strings.TrimSpace(col), refNames)
				if err != nil {
					return nil, err
				}
				spec.ReferencedColumns[i] = resolved
			}
		}
		out = append(out, spec)
	}
	return out, nil
}

// checkIntegrity runs PRAGMA foreign_key_check and converts any rows into
// an IntegrityError enriched with the foreign-key definitions of every
// offending table.
func checkIntegrity(ctx context.Context, tx *sql.Tx, reader *schema.Reader) error {
	rows, err := tx.QueryContext(ctx, "PRAGMA foreign_key_check")
	if err != nil {
		return err
	}
	defer rows.Close()

	var violations []types.FKViolation
	for rows.Next() {
		var (
			v     types.FKViolation
			rowid sql.NullInt64
		)
		if err := rows.Scan(&v.Table, &rowid, &v.Parent, &v.FKID); err != nil {
			return err
		}
		v.RowID = rowid.Int64
		violations = append(violations, v)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(violations) == 0 {
		return nil
	}

	defs := map[string][]types.FKDefinition{}
	for _, v := range violations {
		if _, done := defs[v.Table]; done {
			continue
		}
		defs[v.Table] = readFKDefinitions(ctx, tx, v.Table)
	}
	return &types.IntegrityError{Violations: violations, Definitions: defs}
}

func readFKDefinitions(ctx context.Context, tx *sql.Tx, table string) []types.FKDefinition {
	rows, err := tx.QueryContext(ctx, "PRAGMA foreign_key_list("+schema.Quote(table)+")")
	if err != nil {
		return nil
	}
	defer rows.Close()

	var out []types.FKDefinition
	for rows.Next() {
		var (
			d  types.FKDefinition
			to sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.Seq, &d.Table, &d.From, &to, &d.OnUpdate, &d.OnDelete, &d.Match); err != nil {
			return out
		}
		d.To = to.String
		out = append(out, d)
	}
	return out
}
