package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/aqasim81/sqlmigrate/internal/lint"
)

// errCheckFindings is returned when check reports error-level findings.
var errCheckFindings = errors.New("pending migrations contain statements that cannot run in a migration")

var checkCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "check",
	Short: "Check pending migrations before applying them",
	Long: `Parse the up scripts of pending migrations with the PostgreSQL parser and
report statements that cannot run inside the migration transaction, such as
CREATE INDEX CONCURRENTLY, VACUUM or an explicit COMMIT.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, _ []string) error {
	eng, err := openEngine(cmd, AppConfig)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	report, err := eng.Check(commandContext(cmd))
	if err != nil {
		return err
	}

	printReport(cmd.OutOrStdout(), report)

	if report.HasErrors() {
		return errCheckFindings
	}

	return nil
}

func printReport(out io.Writer, report *lint.Report) {
	var current string

	for _, f := range report.Findings {
		if f.Unit != current {
			current = f.Unit
			fmt.Fprintf(out, "\n=== %s ===\n", f.Unit)
		}

		line := fmt.Sprintf("  [%s] %s:%d %s", f.Severity, f.Direction, f.Line, f.Message)
		if f.Severity >= lint.Error {
			failure(out, line)
		} else {
			notice(out, line)
		}

		fmt.Fprintf(out, "    Rule:  %s\n", f.Rule)

		if f.Table != "" {
			fmt.Fprintf(out, "    Table: %s\n", f.Table)
		}

		if f.Statement != "" {
			fmt.Fprintf(out, "    SQL:   %s\n", truncateSQL(f.Statement, maxStatementWidth))
		}
	}

	if len(report.Findings) == 0 {
		success(out, fmt.Sprintf("%d pending migration(s) checked, no problems found.", report.Units))
		return
	}

	fmt.Fprintf(out, "\nFound %d finding(s) across %d pending migration(s).\n", len(report.Findings), report.Units)
}

const maxStatementWidth = 120

// truncateSQL shortens a statement for display.
func truncateSQL(sql string, maxLen int) string {
	if maxLen < 4 || len(sql) <= maxLen {
		return sql
	}

	return sql[:maxLen-3] + "..."
}
