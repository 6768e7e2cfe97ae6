package types

// ChangeDocument is the parsed changelog: an ordered sequence of ChangeSets
// plus the raw lines that precede the databaseChangeLog key (comments,
// blank lines). ChangeSet order is preserved end to end; no transformation
// reorders across ChangeSet boundaries.
type ChangeDocument struct {
	// Header holds the raw lines before the databaseChangeLog key,
	// verbatim.
	Header []string

	ChangeSets []*ChangeSet

	// TrailingNewline records whether the source ended with a newline, so
	// serialization can round-trip it.
	TrailingNewline bool
}

// Layout captures the indentation observed when a ChangeSet was parsed.
// The serializer reuses it so rewritten ChangeSets keep the source style.
// The zero value selects the canonical two-space layout.
type Layout struct {
	Dash  int // column of the "- changeSet:" dash
	Field int // column of the mapping keys (id, author, changes)
	Item  int // column of the "- <kind>:" dashes under changes
}

// ChangeSet is an atomic, ordered unit of schema changes with an identity.
//
// Raw holds the original source lines of the whole block and is non-nil
// only while the ChangeSet is untouched; every mutation clears it, which
// switches serialization from verbatim splicing to rendering.
type ChangeSet struct {
	ID            string
	Author        string
	Labels        string
	Preconditions *Preconditions
	Changes       []Change

	Raw    []string
	Layout Layout
}

// Touch marks the ChangeSet as modified so it is re-rendered on write.
func (cs *ChangeSet) Touch() { cs.Raw = nil }

// Preconditions guards a ChangeSet's execution. Raw is set when the block
// was parsed from source and carried through verbatim; an injected guard
// has Raw nil and the typed fields populated.
type Preconditions struct {
	OnFail      string
	OnError     string
	TableExists []string

	Raw []string
}

// Precondition dispositions.
const (
	MarkRan = "MARK_RAN"
	Halt    = "HALT"
)

// Change is one operation inside a ChangeSet. Concrete types cover the
// recognized operation kinds; every other kind is a RawChange and passes
// through untouched.
type Change interface {
	// Kind returns the change operation key, e.g. "createTable".
	Kind() string
	// RawLines returns the original source lines of the block, or nil when
	// the change was synthesized or modified.
	RawLines() []string
}

// ColumnDef is a column declaration inside createTable or addColumn.
type ColumnDef struct {
	Name       string
	Type       string
	Default    string
	PrimaryKey bool
	// Nullable is nil when the source declares no nullable constraint.
	Nullable *bool
}

// CreateTable declares a new table.
type CreateTable struct {
	TableName string
	Columns   []ColumnDef

	Raw []string
}

func (c *CreateTable) Kind() string       { return "createTable" }
func (c *CreateTable) RawLines() []string { return c.Raw }

// AddColumn appends columns to an existing table.
type AddColumn struct {
	TableName string
	Columns   []ColumnDef

	Raw []string
}

func (c *AddColumn) Kind() string       { return "addColumn" }
func (c *AddColumn) RawLines() []string { return c.Raw }

// DropColumn removes a column.
type DropColumn struct {
	TableName  string
	ColumnName string

	Raw []string
}

func (c *DropColumn) Kind() string       { return "dropColumn" }
func (c *DropColumn) RawLines() []string { return c.Raw }

// AddForeignKey adds a foreign-key constraint. Column name lists are kept
// comma-separated exactly as they appear in the document.
type AddForeignKey struct {
	BaseTableName         string
	BaseColumnNames       string
	ReferencedTableName   string
	ReferencedColumnNames string
	ConstraintName        string
	OnDelete              string
	OnUpdate              string
	Match                 string

	Raw []string
}

func (c *AddForeignKey) Kind() string       { return "addForeignKeyConstraint" }
func (c *AddForeignKey) RawLines() []string { return c.Raw }

// DropForeignKey drops a foreign-key constraint. All fields but the base
// table are optional in the source.
type DropForeignKey struct {
	BaseTableName       string
	ConstraintName      string
	BaseColumnNames     string
	ReferencedTableName string

	Raw []string
}

func (c *DropForeignKey) Kind() string       { return "dropForeignKeyConstraint" }
func (c *DropForeignKey) RawLines() []string { return c.Raw }

// AddUniqueConstraint adds a unique constraint over one or more columns.
type AddUniqueConstraint struct {
	TableName      string
	ColumnNames    string
	ConstraintName string

	Raw []string
}

func (c *AddUniqueConstraint) Kind() string       { return "addUniqueConstraint" }
func (c *AddUniqueConstraint) RawLines() []string { return c.Raw }

// ModifyDataType changes a column's declared type.
type ModifyDataType struct {
	TableName   string
	ColumnName  string
	NewDataType string

	Raw []string
}

func (c *ModifyDataType) Kind() string       { return "modifyDataType" }
func (c *ModifyDataType) RawLines() []string { return c.Raw }

// CreateIndex creates an index over the named columns.
type CreateIndex struct {
	TableName string
	IndexName string
	Unique    bool
	Columns   []string

	Raw []string
}

func (c *CreateIndex) Kind() string       { return "createIndex" }
func (c *CreateIndex) RawLines() []string { return c.Raw }

// RawChange is any change kind without a concrete type (dropIndex, sql,
// and everything unrecognized). Fields holds a best-effort flat scan of the
// block's scalar keys so passes can attribute a table to the change.
type RawChange struct {
	Key    string
	Fields map[string]string

	Raw []string
}

func (c *RawChange) Kind() string       { return c.Key }
func (c *RawChange) RawLines() []string { return c.Raw }

// TargetTable returns the table a change operates on, or "" when no table
// can be identified.
func TargetTable(c Change) string {
	switch v := c.(type) {
	case *CreateTable:
		return v.TableName
	case *AddColumn:
		return v.TableName
	case *DropColumn:
		return v.TableName
	case *AddForeignKey:
		return v.BaseTableName
	case *DropForeignKey:
		return v.BaseTableName
	case *AddUniqueConstraint:
		return v.TableName
	case *ModifyDataType:
		return v.TableName
	case *CreateIndex:
		return v.TableName
	case *RawChange:
		if t := v.Fields["tableName"]; t != "" {
			return t
		}
		return v.Fields["baseTableName"]
	}
	return ""
}
