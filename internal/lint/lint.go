package lint

import (
	"fmt"

	"github.com/aqasim81/sqlmigrate/internal/migration"
	"github.com/aqasim81/sqlmigrate/internal/parser"
)

// Script directions checked by a Linter.
const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// Finding is a single problem detected in a step script.
type Finding struct {
	Rule      string   // Rule ID (e.g., "non-transactional")
	Severity  Severity // How the finding affects the step
	Unit      string   // Unit id
	Direction string   // "up" or "down"
	Table     string   // Affected table, when known
	Statement string   // Statement text
	Line      int      // 1-based line of the statement in the script
	Message   string   // Human-readable description
	StmtIndex int      // Index in the script's statement list (0-based)
}

// Report holds every finding of a check run.
type Report struct {
	Units      int
	Findings   []Finding
	Max        Severity
	Statements map[string]int // up script statement count per unit id
}

// HasErrors reports whether any finding would make a step fail.
func (r *Report) HasErrors() bool {
	return len(r.Findings) > 0 && r.Max >= Error
}

func (r *Report) add(fs ...Finding) {
	for _, f := range fs {
		if len(r.Findings) == 0 || f.Severity > r.Max {
			r.Max = f.Severity
		}

		r.Findings = append(r.Findings, f)
	}
}

// ScriptReader returns the contents of a unit script.
type ScriptReader func(path string) (string, error)

// Option configures the Linter.
type Option func(*Linter)

// Linter runs rules over the parsed scripts of migration units.
type Linter struct {
	rules   []Rule
	parseFn func(string) (*parser.ParseResult, error)
	down    bool
}

// New creates a Linter with the default rules.
func New(opts ...Option) *Linter {
	l := &Linter{
		rules:   DefaultRules(),
		parseFn: parser.Parse,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// WithRules replaces the rule set.
func WithRules(rules ...Rule) Option {
	return func(l *Linter) { l.rules = rules }
}

// WithParser overrides the SQL parser function (useful for testing).
func WithParser(fn func(string) (*parser.ParseResult, error)) Option {
	return func(l *Linter) { l.parseFn = fn }
}

// WithDownScripts makes the Linter check down scripts as well.
func WithDownScripts(b bool) Option {
	return func(l *Linter) { l.down = b }
}

// CheckScript parses one script and returns its findings. A script that
// does not parse yields a single parse-error finding.
func (l *Linter) CheckScript(u migration.Unit, dir, script string) []Finding {
	findings, _ := l.checkScript(u, dir, script)

	return findings
}

func (l *Linter) checkScript(u migration.Unit, dir, script string) ([]Finding, int) {
	result, err := l.parseFn(script)
	if err != nil {
		return []Finding{{
			Rule:      "parse-error",
			Severity:  Error,
			Unit:      u.ID,
			Direction: dir,
			Message:   err.Error(),
		}}, 0
	}

	var findings []Finding

	for i, stmt := range result.Stmts {
		ctx := &RuleContext{Unit: u, Direction: dir, StmtIndex: i}

		for _, rule := range l.rules {
			fs := rule.Check(stmt, ctx)
			for j := range fs {
				fs[j].Statement = result.Statement(i)
				fs[j].Line = result.Line(i)
			}

			findings = append(findings, fs...)
		}
	}

	return findings, len(result.Stmts)
}

// Check reads and checks the scripts of every unit in order. Read failures
// abort the run.
func (l *Linter) Check(units []migration.Unit, read ScriptReader) (*Report, error) {
	report := &Report{Units: len(units), Statements: make(map[string]int, len(units))}

	for _, u := range units {
		paths := []struct{ dir, path string }{{DirectionUp, u.UpPath}}
		if l.down {
			paths = append(paths, struct{ dir, path string }{DirectionDown, u.DownPath})
		}

		for _, p := range paths {
			script, err := read(p.path)
			if err != nil {
				return nil, fmt.Errorf("checking migration %s: %w", u.ID, err)
			}

			findings, n := l.checkScript(u, p.dir, script)
			if p.dir == DirectionUp {
				report.Statements[u.ID] = n
			}

			report.add(findings...)
		}
	}

	return report, nil
}
