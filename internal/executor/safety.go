package executor

import (
	"context"
	"fmt"
	"time"
)

const resetTimeoutsSQL = "RESET lock_timeout; RESET statement_timeout"

// setLockTimeout sets lock_timeout for the current transaction.
// The step fails fast if it cannot acquire a lock within the duration,
// instead of queueing behind other sessions.
func setLockTimeout(ctx context.Context, r ScriptRunner, timeout time.Duration) error {
	sql := fmt.Sprintf("SET lock_timeout = '%dms'", timeout.Milliseconds())

	if _, err := r.Execute(ctx, sql, nil); err != nil {
		return fmt.Errorf("setting lock_timeout: %w", err)
	}

	return nil
}

// setStatementTimeout sets statement_timeout for the current transaction.
func setStatementTimeout(ctx context.Context, r ScriptRunner, timeout time.Duration) error {
	sql := fmt.Sprintf("SET statement_timeout = '%dms'", timeout.Milliseconds())

	if _, err := r.Execute(ctx, sql, nil); err != nil {
		return fmt.Errorf("setting statement_timeout: %w", err)
	}

	return nil
}

// applyTimeouts sets the configured timeouts and queues their reset for
// commit. A rolled back transaction discards the SET on its own.
func (e *Executor) applyTimeouts(ctx context.Context) error {
	if !e.dialect.SupportsSessionTimeouts() || (e.lockTimeout <= 0 && e.statementTimeout <= 0) {
		return nil
	}

	if e.lockTimeout > 0 {
		if err := setLockTimeout(ctx, e.stmts, e.lockTimeout); err != nil {
			return err
		}
	}

	if e.statementTimeout > 0 {
		if err := setStatementTimeout(ctx, e.stmts, e.statementTimeout); err != nil {
			return err
		}
	}

	if err := e.tx.Defer(resetTimeoutsSQL, nil); err != nil {
		return fmt.Errorf("queueing timeout reset: %w", err)
	}

	return nil
}
