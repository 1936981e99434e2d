package lint

import (
	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/aqasim81/sqlmigrate/internal/migration"
)

// Rule inspects one parsed statement of a step script.
type Rule interface {
	// ID returns a unique kebab-case identifier for this rule.
	ID() string
	// Check examines a single parsed statement and returns any findings.
	Check(stmt *pg_query.RawStmt, ctx *RuleContext) []Finding
}

// RuleContext provides contextual information to rules during a check.
type RuleContext struct {
	Unit      migration.Unit
	Direction string
	StmtIndex int
}

// DefaultRules returns the rules a Linter runs when none are configured.
func DefaultRules() []Rule {
	return []Rule{
		&NonTransactionalRule{},
		&TransactionControlRule{},
		&LockTableRule{},
		&DropTableRule{},
	}
}

// TableName extracts a qualified table name from a RangeVar.
func TableName(rv *pg_query.RangeVar) string {
	if rv == nil {
		return "<unknown>"
	}

	if rv.Schemaname != "" {
		return rv.Schemaname + "." + rv.Relname
	}

	return rv.Relname
}

func finding(r Rule, sev Severity, ctx *RuleContext, msg string) Finding {
	return Finding{
		Rule:      r.ID(),
		Severity:  sev,
		Unit:      ctx.Unit.ID,
		Direction: ctx.Direction,
		Message:   msg,
		StmtIndex: ctx.StmtIndex,
	}
}
