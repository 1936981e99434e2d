package engine

import (
	"context"
	"errors"

	"github.com/aqasim81/sqlmigrate/internal/config"
	"github.com/aqasim81/sqlmigrate/internal/database"
	"github.com/aqasim81/sqlmigrate/internal/executor"
	"github.com/aqasim81/sqlmigrate/internal/ledger"
)

// Scope tells a caller how far an error reaches.
type Scope int

const (
	// ScopeNone is reported for a nil error.
	ScopeNone Scope = iota
	// ScopeOperation means one operation failed; the engine is still usable.
	ScopeOperation
	// ScopeStep means a batch step failed and the rest of the batch was skipped.
	ScopeStep
	// ScopeRun means the engine cannot continue.
	ScopeRun
)

// String returns the lowercase scope name.
func (s Scope) String() string {
	switch s {
	case ScopeNone:
		return "none"
	case ScopeOperation:
		return "operation"
	case ScopeStep:
		return "step"
	case ScopeRun:
		return "run"
	default:
		return "unknown"
	}
}

// ScopeOf classifies err. A step failure wins over the cause it wraps.
func ScopeOf(err error) Scope {
	if err == nil {
		return ScopeNone
	}

	var stepErr *executor.StepError
	if errors.As(err, &stepErr) {
		return ScopeStep
	}

	switch {
	case database.IsConnectionError(err),
		errors.Is(err, ledger.ErrSchemaBootstrap),
		errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return ScopeRun
	default:
		// Validation, filesystem and ledger read failures end only the
		// operation that raised them.
		return ScopeOperation
	}
}
