package executor

import (
	"errors"
	"fmt"
)

// ErrScriptFailed indicates the body of a migration script was rejected.
var ErrScriptFailed = errors.New("migration script failed")

// StepError reports the unit a batch stopped at. Units processed before it
// stay applied or reverted.
type StepError struct {
	ID        string
	Direction Direction
	Err       error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s migration %s: %v", e.Direction, e.ID, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
