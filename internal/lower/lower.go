package lower

import (
	"strings"

	"github.com/mesh-intelligence/relift/pkg/types"
)

// maxIndexNameLen caps derived unique-index names.
const maxIndexNameLen = 60

// PendingTypeChange is a modifyDataType dropped from the plan, reported for
// operator follow-up but never applied.
type PendingTypeChange struct {
	Table   string
	Column  string
	NewType string
}

// Result is the outcome of lowering one document.
type Result struct {
	Document *types.ChangeDocument
	Plan     *types.RebuildPlan
	Pending  []PendingTypeChange
}

// Lower transforms the document in place for a SQLite target:
//
//   - addUniqueConstraint becomes a unique createIndex;
//   - modifyDataType is dropped and reported as pending;
//   - foreign-key operations are extracted into the rebuild plan;
//   - modified ChangeSets that still target a single identifiable table
//     gain a tableExists guard with MARK_RAN dispositions.
//
// ChangeSets containing none of the rewritten kinds come through
// byte-identical.
func Lower(doc *types.ChangeDocument) *Result {
	res := &Result{Document: doc}
	res.Plan = ExtractForeignKeyOps(doc)

	kept := doc.ChangeSets[:0]
	for _, cs := range doc.ChangeSets {
		// Indexes of changes synthesized from addUniqueConstraint; these
		// are excluded from the precondition heuristic.
		fromUnique := map[int]bool{}

		changes := cs.Changes[:0]
		for _, c := range cs.Changes {
			switch v := c.(type) {
			case *types.AddUniqueConstraint:
				fromUnique[len(changes)] = true
				changes = append(changes, uniqueToIndex(v))
				cs.Touch()
			case *types.ModifyDataType:
				res.Pending = append(res.Pending, PendingTypeChange{
					Table:   v.TableName,
					Column:  v.ColumnName,
					NewType: v.NewDataType,
				})
				cs.Touch()
			default:
				changes = append(changes, c)
			}
		}
		cs.Changes = changes
		if len(cs.Changes) == 0 {
			continue
		}
		kept = append(kept, cs)

		if cs.Raw == nil && cs.Preconditions == nil {
			injectPrecondition(cs, fromUnique)
		}
	}
	doc.ChangeSets = kept

	return res
}

// uniqueToIndex rewrites an addUniqueConstraint into the equivalent unique
// createIndex. A missing constraint name is derived from the table and
// column list.
func uniqueToIndex(u *types.AddUniqueConstraint) *types.CreateIndex {
	name := u.ConstraintName
	if name == "" {
		name = uniqueIndexName(u.TableName, u.ColumnNames)
	}
	return &types.CreateIndex{
		TableName: u.TableName,
		IndexName: name,
		Unique:    true,
		Columns:   types.SplitColumnList(u.ColumnNames),
	}
}

// uniqueIndexName derives "<table>_<cols>_uq" with non-alphanumerics mapped
// to underscores, truncated at 60 characters.
func uniqueIndexName(table, columnsCsv string) string {
	base := table + "_" + strings.ReplaceAll(columnsCsv, ",", "_") + "_uq"
	var b strings.Builder
	for _, r := range base {
		ok := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '_'
		if ok {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	name := b.String()
	if len(name) > maxIndexNameLen {
		name = name[:maxIndexNameLen]
	}
	return name
}

// injectPrecondition guards a rewritten ChangeSet with tableExists when its
// remaining changes identify exactly one target table. createTable entries
// and changes synthesized from addUniqueConstraint do not contribute a
// table, and a createTable for the candidate table suppresses the guard.
func injectPrecondition(cs *types.ChangeSet, fromUnique map[int]bool) {
	tables := map[string]bool{}
	created := map[string]bool{}

	for i, c := range cs.Changes {
		if ct, ok := c.(*types.CreateTable); ok {
			created[strings.ToLower(ct.TableName)] = true
			continue
		}
		if fromUnique[i] {
			continue
		}
		t := types.TargetTable(c)
		if t == "" {
			// Unidentifiable target: stay out of the way.
			return
		}
		tables[t] = true
	}

	if len(tables) != 1 {
		return
	}
	var table string
	for t := range tables {
		table = t
	}
	if created[strings.ToLower(table)] {
		return
	}

	cs.Preconditions = &types.Preconditions{
		OnFail:      types.MarkRan,
		OnError:     types.MarkRan,
		TableExists: []string{table},
	}
}
