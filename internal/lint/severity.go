package lint

// Severity represents how a finding affects a step.
type Severity int

const (
	// Info is a note that never blocks a run.
	Info Severity = iota
	// Warning marks a statement that works but deserves review.
	Warning
	// Error marks a statement that will fail or break the step transaction.
	Error
)

// String returns the uppercase label for the severity level.
func (s Severity) String() string {
	switch s {
	case Info:
		return "INFO"
	case Warning:
		return "WARNING"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}
