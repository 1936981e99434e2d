package parser //nolint:revive // intentional: does not conflict with go/parser in internal package

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// ParseResult holds the parsed AST and original SQL.
type ParseResult struct {
	Stmts []*pg_query.RawStmt
	SQL   string

	// offset is the number of leading bytes trimmed before parsing.
	offset int
}

// Parse parses a PostgreSQL SQL string and returns the AST.
// Returns an empty result (zero statements) for empty or whitespace-only input.
func Parse(sql string) (*ParseResult, error) {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return &ParseResult{SQL: sql}, nil
	}

	tree, err := pg_query.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parsing SQL: %w", err)
	}

	return &ParseResult{
		Stmts:  tree.Stmts,
		SQL:    sql,
		offset: len(sql) - len(strings.TrimLeft(sql, " \t\r\n\v\f")),
	}, nil
}

// Statement returns the source text of the statement at idx, without the
// trailing semicolon. It returns "" when idx is out of range.
func (r *ParseResult) Statement(idx int) string {
	if idx < 0 || idx >= len(r.Stmts) {
		return ""
	}

	start := r.offset + int(r.Stmts[idx].StmtLocation)

	end := len(r.SQL)
	if length := int(r.Stmts[idx].StmtLen); length > 0 {
		end = start + length
	}

	if start > len(r.SQL) || end > len(r.SQL) || start >= end {
		return ""
	}

	return strings.TrimSuffix(strings.TrimSpace(r.SQL[start:end]), ";")
}

// Line returns the 1-based line on which the statement at idx starts.
func (r *ParseResult) Line(idx int) int {
	if idx < 0 || idx >= len(r.Stmts) {
		return 0
	}

	start := r.offset + int(r.Stmts[idx].StmtLocation)
	if start > len(r.SQL) {
		start = len(r.SQL)
	}

	// StmtLocation points just past the previous statement's semicolon.
	lead := len(r.SQL[start:]) - len(strings.TrimLeft(r.SQL[start:], " \t\r\n\v\f"))

	return strings.Count(r.SQL[:start+lead], "\n") + 1
}
