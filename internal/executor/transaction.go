package executor

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// inTransaction runs fn inside a transaction on t.
// On success the transaction is committed, which also runs any statements
// fn deferred; on error it is rolled back.
func inTransaction(ctx context.Context, t Transactor, fn func() error) error {
	if err := t.Begin(ctx); err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(); err != nil {
		if rbErr := t.Rollback(); rbErr != nil {
			return multierror.Append(err, fmt.Errorf("rolling back: %w", rbErr))
		}

		return err
	}

	if err := t.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}
