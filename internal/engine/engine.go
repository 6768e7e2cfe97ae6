// Package engine orchestrates the lowering pipeline and the per-table
// rebuilds: parse, optionally auto-name constraints, extract foreign-key
// operations, lower the document, emit artifacts, and apply the rebuild
// plan gated by the audit store.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/relift/internal/audit"
	"github.com/mesh-intelligence/relift/internal/changelog"
	"github.com/mesh-intelligence/relift/internal/lower"
	"github.com/mesh-intelligence/relift/internal/namer"
	"github.com/mesh-intelligence/relift/internal/rebuild"
	"github.com/mesh-intelligence/relift/pkg/types"
)

// artifactTimestamp is the layout used in emitted artifact names.
const artifactTimestamp = "20060102-150405"

// Engine runs the lower-plan-execute pipeline. db may be nil for an engine
// that only lowers documents.
type Engine struct {
	db   *sql.DB
	opts types.Options
	log  *slog.Logger

	// now is swapped in tests for stable artifact names.
	now func() time.Time
}

// New returns an Engine. A nil logger falls back to slog.Default().
func New(db *sql.DB, opts types.Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{db: db, opts: opts, log: logger, now: time.Now}
}

// LowerResult is the outcome of lowering one document.
type LowerResult struct {
	// RunID identifies this engine run in logs and artifact headers.
	RunID string

	Document   *types.ChangeDocument
	Plan       *types.RebuildPlan
	Pending    []lower.PendingTypeChange
	Serialized string

	// ArtifactPath is the emitted changelog file, or "" when output was
	// skipped. PendingPath is the pending-type-changes report, or "".
	ArtifactPath string
	PendingPath  string
}

// newRunID returns a UUID v7, falling back to v4 when the clock-based
// generator fails.
func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// Lower parses src, runs the constraint namer when configured, extracts
// foreign-key operations into the rebuild plan, lowers the remaining
// changes for SQLite, and emits the output artifacts.
func (e *Engine) Lower(src string) (*LowerResult, error) {
	res := &LowerResult{RunID: newRunID()}

	doc, err := changelog.Parse(src)
	if err != nil {
		return nil, err
	}

	if e.opts.AutoNameConstraints {
		if namer.AutoName(doc) {
			e.log.Debug("auto-named anonymous foreign-key constraints", "run", res.RunID)
		}
	}

	lowered := lower.Lower(doc)
	res.Document = lowered.Document
	res.Plan = lowered.Plan
	res.Pending = lowered.Pending
	res.Serialized = changelog.Serialize(doc)

	for _, p := range res.Pending {
		e.log.Warn("type change not applied on sqlite; left pending",
			"run", res.RunID, "table", p.Table, "column", p.Column, "new_type", p.NewType)
	}

	if err := e.emitArtifacts(res); err != nil {
		return nil, err
	}
	return res, nil
}

// emitArtifacts writes the lowered changelog and the pending-types report
// to the output directory.
func (e *Engine) emitArtifacts(res *LowerResult) error {
	if e.opts.OutputDir == "" {
		return nil
	}
	if e.opts.SkipWhenEmpty && len(res.Document.ChangeSets) == 0 {
		e.log.Info("no change sets remain; skipping artifact", "run", res.RunID)
		return nil
	}
	if err := os.MkdirAll(e.opts.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	stamp := e.now().Format(artifactTimestamp)
	header := "# relift run " + res.RunID + "\n"

	res.ArtifactPath = filepath.Join(e.opts.OutputDir, "changelog-"+stamp+"-lowered.yaml")
	if err := os.WriteFile(res.ArtifactPath, []byte(header+res.Serialized), 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	e.log.Info("lowered changelog written", "run", res.RunID, "path", res.ArtifactPath)

	if len(res.Pending) > 0 {
		var b strings.Builder
		for _, p := range res.Pending {
			fmt.Fprintf(&b, "%s %s %s\n", p.Table, p.Column, p.NewType)
		}
		res.PendingPath = filepath.Join(e.opts.OutputDir, "changelog-"+stamp+"-pending-types.txt")
		if err := os.WriteFile(res.PendingPath, []byte(b.String()), 0o644); err != nil {
			return fmt.Errorf("write pending report: %w", err)
		}
	}
	return nil
}

// Apply executes the rebuild plan against the database, one table at a
// time in first-appearance order. A plan whose hash is already recorded in
// the audit store is skipped and counted as a success.
func (e *Engine) Apply(ctx context.Context, res *LowerResult) error {
	if e.db == nil {
		return errors.New("apply requires a database")
	}
	if res.Plan.Empty() {
		e.log.Info("no foreign-key operations; nothing to rebuild", "run", res.RunID)
		return nil
	}
	if err := e.guardSQLite(ctx); err != nil {
		return err
	}

	store := audit.NewStore(e.db)
	if err := store.EnsureTable(ctx); err != nil {
		return err
	}

	hash := res.Plan.Hash()
	applied, err := store.WasApplied(ctx, hash)
	if err != nil {
		return err
	}
	if applied {
		e.log.Info("rebuild plan already applied; skipping", "run", res.RunID, "hash", hash)
		return nil
	}

	exec := rebuild.NewExecutor(e.db, e.log)
	for _, table := range res.Plan.Tables() {
		var adds, drops []types.ForeignKeySpec
		for _, op := range res.Plan.Ops(table) {
			switch op.Kind {
			case types.FKAdd:
				adds = append(adds, op.Spec)
			case types.FKDrop:
				drops = append(drops, op.Spec)
			}
		}
		e.log.Info("rebuilding table", "run", res.RunID, "table", table,
			"adds", len(adds), "drops", len(drops))
		if err := exec.Rebuild(ctx, table, adds, drops); err != nil {
			return err
		}
	}

	return store.RecordApplied(ctx, hash, res.Plan.Canonical())
}

// Run lowers src and applies the resulting plan.
func (e *Engine) Run(ctx context.Context, src string) (*LowerResult, error) {
	res, err := e.Lower(src)
	if err != nil {
		return nil, err
	}
	if err := e.Apply(ctx, res); err != nil {
		return res, err
	}
	return res, nil
}

// guardSQLite verifies the connected database is SQLite before any
// rebuild statements run.
func (e *Engine) guardSQLite(ctx context.Context) error {
	var version string
	if err := e.db.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&version); err != nil {
		return fmt.Errorf("target database is not sqlite: %w", err)
	}
	return nil
}
