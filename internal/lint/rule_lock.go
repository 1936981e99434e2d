package lint

import (
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// LockTableRule detects explicit LOCK TABLE statements.
type LockTableRule struct{}

// ID returns the rule identifier.
func (r *LockTableRule) ID() string { return "lock-table" }

// Check examines a statement for explicit LOCK TABLE.
func (r *LockTableRule) Check(stmt *pg_query.RawStmt, ctx *RuleContext) []Finding {
	node, ok := stmt.Stmt.Node.(*pg_query.Node_LockStmt)
	if !ok || node.LockStmt == nil {
		return nil
	}

	var findings []Finding

	for _, rel := range node.LockStmt.Relations {
		rv, ok := rel.Node.(*pg_query.Node_RangeVar)
		if !ok {
			continue
		}

		f := finding(r, Warning, ctx, "explicit lock is held until the step commits")
		f.Table = TableName(rv.RangeVar)
		findings = append(findings, f)
	}

	return findings
}

// DropTableRule detects DROP TABLE and TRUNCATE in up scripts. Down scripts
// are expected to drop what their up script created.
type DropTableRule struct{}

// ID returns the rule identifier.
func (r *DropTableRule) ID() string { return "drop-table" }

// Check examines a statement for DROP TABLE or TRUNCATE.
func (r *DropTableRule) Check(stmt *pg_query.RawStmt, ctx *RuleContext) []Finding {
	if ctx.Direction != DirectionUp {
		return nil
	}

	switch node := stmt.Stmt.Node.(type) {
	case *pg_query.Node_DropStmt:
		drop := node.DropStmt
		if drop == nil || drop.RemoveType != pg_query.ObjectType_OBJECT_TABLE {
			return nil
		}

		f := finding(r, Warning, ctx, "DROP TABLE permanently deletes data and cannot be reverted by the down script")
		f.Table = strings.Join(dropTableNames(drop), ", ")

		return []Finding{f}
	case *pg_query.Node_TruncateStmt:
		if node.TruncateStmt == nil {
			return nil
		}

		var tables []string

		for _, rel := range node.TruncateStmt.Relations {
			if rv, ok := rel.Node.(*pg_query.Node_RangeVar); ok {
				tables = append(tables, TableName(rv.RangeVar))
			}
		}

		f := finding(r, Warning, ctx, "TRUNCATE removes all rows and cannot be reverted by the down script")
		f.Table = strings.Join(tables, ", ")

		return []Finding{f}
	default:
		return nil
	}
}

func dropTableNames(drop *pg_query.DropStmt) []string {
	var tables []string

	for _, obj := range drop.Objects {
		listNode, ok := obj.Node.(*pg_query.Node_List)
		if !ok {
			continue
		}

		var parts []string

		for _, item := range listNode.List.Items {
			if s, ok := item.Node.(*pg_query.Node_String_); ok {
				parts = append(parts, s.String_.Sval)
			}
		}

		if len(parts) > 0 {
			tables = append(tables, strings.Join(parts, "."))
		}
	}

	return tables
}
