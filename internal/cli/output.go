package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/aqasim81/sqlmigrate/internal/engine"
)

// DateLayout formats ledger and unit timestamps for display.
const DateLayout = "2006-01-02 15:04:05"

// Exit codes returned by Execute.
const (
	exitFailure = 1
	exitFatal   = 2
)

// consoleSink prints step messages: successes in green on out, failures in
// red on errOut.
type consoleSink struct {
	out    io.Writer
	errOut io.Writer
}

func newConsoleSink(out, errOut io.Writer) *consoleSink {
	return &consoleSink{out: out, errOut: errOut}
}

// Info prints msg in green. Key/value args are not shown.
func (s *consoleSink) Info(msg string, _ ...interface{}) {
	success(s.out, msg)
}

// Error prints msg in red followed by the "error" argument, if any.
func (s *consoleSink) Error(msg string, args ...interface{}) {
	failure(s.errOut, msg)

	for i := 0; i+1 < len(args); i += 2 {
		if key, ok := args[i].(string); ok && key == "error" {
			fmt.Fprintf(s.errOut, "  %v\n", args[i+1])
		}
	}
}

func success(w io.Writer, msg string) {
	fmt.Fprintln(w, color.GreenString(msg))
}

func failure(w io.Writer, msg string) {
	fmt.Fprintln(w, color.RedString(msg))
}

func notice(w io.Writer, msg string) {
	fmt.Fprintln(w, color.YellowString(msg))
}

func printError(w io.Writer, err error) {
	failure(w, "Error: "+err.Error())
}

// exitCode maps an error to the process exit status. Errors that end the
// whole run exit with 2.
func exitCode(err error) int {
	if engine.ScopeOf(err) == engine.ScopeRun {
		return exitFatal
	}

	return exitFailure
}

func formatTime(t time.Time) string {
	return t.UTC().Format(DateLayout)
}
