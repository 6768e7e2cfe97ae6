package types

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Engine failure kinds, matched via errors.Is (the sentinels below) or
// errors.As (the typed errors in this file). Some engine failures, such as
// a missing database handle or an artifact write error, are plain errors
// that match none of them.
var (
	// ErrMalformedDocument reports input the changelog parser cannot
	// interpret.
	ErrMalformedDocument = errors.New("malformed changelog document")

	// ErrTableMissing reports that the base table of a rebuild cannot be
	// located in the live schema.
	ErrTableMissing = errors.New("table missing from live schema")

	// ErrTableNotFound reports that the schema reader found no row for a
	// table in sqlite_master.
	ErrTableNotFound = errors.New("table not found")

	// ErrAuditStore reports that the audit table cannot be read or written.
	ErrAuditStore = errors.New("audit store failure")
)

// IdentifierNotFoundError reports an identifier that could not be resolved
// to a physical name. Known enumerates the candidates that were considered.
type IdentifierNotFoundError struct {
	Requested string
	Known     []string
}

func (e *IdentifierNotFoundError) Error() string {
	known := append([]string(nil), e.Known...)
	sort.Strings(known)
	return fmt.Sprintf("identifier %q not found; known names: %s",
		e.Requested, strings.Join(known, ", "))
}

// RebuildError wraps the database error that aborted a table rebuild. The
// enclosing transaction has been rolled back by the time the error is
// returned.
type RebuildError struct {
	Table string
	Step  string
	Err   error
}

func (e *RebuildError) Error() string {
	return fmt.Sprintf("rebuild of %q failed at %s: %v", e.Table, e.Step, e.Err)
}

func (e *RebuildError) Unwrap() error { return e.Err }

// FKViolation is one row returned by PRAGMA foreign_key_check.
type FKViolation struct {
	Table  string
	RowID  int64
	Parent string
	FKID   int64
}

// FKDefinition is one row of PRAGMA foreign_key_list, kept for diagnostics.
type FKDefinition struct {
	ID       int
	Seq      int
	Table    string
	From     string
	To       string
	OnUpdate string
	OnDelete string
	Match    string
}

// IntegrityError reports rows returned by the post-rebuild foreign_key_check.
// Definitions holds the foreign-key definitions of every offending table.
type IntegrityError struct {
	Violations  []FKViolation
	Definitions map[string][]FKDefinition
}

func (e *IntegrityError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "foreign key check failed with %d violation(s)", len(e.Violations))
	for _, v := range e.Violations {
		fmt.Fprintf(&b, "\n  table=%s rowid=%d parent=%s fk=%d", v.Table, v.RowID, v.Parent, v.FKID)
	}
	tables := make([]string, 0, len(e.Definitions))
	for t := range e.Definitions {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	for _, t := range tables {
		fmt.Fprintf(&b, "\n  foreign keys of %s:", t)
		for _, d := range e.Definitions[t] {
			fmt.Fprintf(&b, "\n    id=%d seq=%d from=%s references=%s(%s) on_update=%s on_delete=%s match=%s",
				d.ID, d.Seq, d.From, d.Table, d.To, d.OnUpdate, d.OnDelete, d.Match)
		}
	}
	return b.String()
}
