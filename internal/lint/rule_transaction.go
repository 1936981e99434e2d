package lint

import (
	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// NonTransactionalRule detects statements PostgreSQL refuses to run inside a
// transaction block.
type NonTransactionalRule struct{}

// ID returns the rule identifier.
func (r *NonTransactionalRule) ID() string { return "non-transactional" }

// Check examines a statement for commands that cannot run in a step.
func (r *NonTransactionalRule) Check(stmt *pg_query.RawStmt, ctx *RuleContext) []Finding {
	name := nonTransactional(stmt.Stmt)
	if name == "" {
		return nil
	}

	return []Finding{finding(r, Error, ctx, name+" cannot run inside a transaction block")}
}

func nonTransactional(n *pg_query.Node) string {
	if n == nil {
		return ""
	}

	switch node := n.Node.(type) {
	case *pg_query.Node_IndexStmt:
		if node.IndexStmt != nil && node.IndexStmt.Concurrent {
			return "CREATE INDEX CONCURRENTLY"
		}
	case *pg_query.Node_DropStmt:
		if node.DropStmt != nil && node.DropStmt.Concurrent {
			return "DROP INDEX CONCURRENTLY"
		}
	case *pg_query.Node_ReindexStmt:
		if node.ReindexStmt != nil && hasOption(node.ReindexStmt.Params, "concurrently") {
			return "REINDEX CONCURRENTLY"
		}
	case *pg_query.Node_VacuumStmt:
		if node.VacuumStmt != nil && node.VacuumStmt.IsVacuumcmd {
			return "VACUUM"
		}
	case *pg_query.Node_CreatedbStmt:
		return "CREATE DATABASE"
	case *pg_query.Node_DropdbStmt:
		return "DROP DATABASE"
	case *pg_query.Node_AlterSystemStmt:
		return "ALTER SYSTEM"
	case *pg_query.Node_CreateTableSpaceStmt:
		return "CREATE TABLESPACE"
	case *pg_query.Node_DropTableSpaceStmt:
		return "DROP TABLESPACE"
	}

	return ""
}

func hasOption(opts []*pg_query.Node, name string) bool {
	for _, opt := range opts {
		de, ok := opt.Node.(*pg_query.Node_DefElem)
		if !ok {
			continue
		}

		if de.DefElem.Defname == name {
			return true
		}
	}

	return false
}

// TransactionControlRule detects statements that would end the step
// transaction before the ledger is written.
type TransactionControlRule struct{}

// ID returns the rule identifier.
func (r *TransactionControlRule) ID() string { return "transaction-control" }

// Check examines a statement for BEGIN, COMMIT, ROLLBACK and friends.
// Savepoints stay inside the step and are allowed.
func (r *TransactionControlRule) Check(stmt *pg_query.RawStmt, ctx *RuleContext) []Finding {
	node, ok := stmt.Stmt.Node.(*pg_query.Node_TransactionStmt)
	if !ok || node.TransactionStmt == nil {
		return nil
	}

	switch node.TransactionStmt.Kind {
	case pg_query.TransactionStmtKind_TRANS_STMT_SAVEPOINT,
		pg_query.TransactionStmtKind_TRANS_STMT_RELEASE,
		pg_query.TransactionStmtKind_TRANS_STMT_ROLLBACK_TO:
		return nil
	default:
		return []Finding{finding(r, Error, ctx,
			"transaction control statements end the step transaction; the engine commits each step itself")}
	}
}
