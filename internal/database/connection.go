package database

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"

	"github.com/aqasim81/sqlmigrate/internal/config"
)

// Connect opens a connection for cfg and returns a Manager holding it.
// The ping is retried with exponential backoff up to cfg.ConnectRetries times.
// Once connected, the character set and strict-mode settings are applied.
func Connect(ctx context.Context, cfg config.Database, opts ...Option) (*Manager, error) {
	dialect, err := LookupDialect(cfg.DBMS)
	if err != nil {
		return nil, err
	}

	dsn, err := dialect.DSN(cfg)
	if err != nil {
		return nil, err
	}

	setup, err := dialect.SessionSetup(cfg.Charset)
	if err != nil {
		return nil, err
	}

	m := newManager(dialect, opts)

	db, err := sqlx.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidDSN, config.RedactDSN(dsn), err)
	}

	// A single connection keeps every statement on the session the
	// transaction was opened on.
	db.SetMaxOpenConns(1)

	if err := ping(ctx, db, cfg.ConnectRetries, m); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, config.RedactDSN(dsn), err)
	}

	if err := m.attach(ctx, db); err != nil {
		_ = db.Close()

		return nil, err
	}

	for _, stmt := range setup {
		if _, err := m.conn.ExecContext(ctx, stmt); err != nil {
			_ = m.Close()

			return nil, fmt.Errorf("%w: session setup %q: %w", ErrConnectionFailed, stmt, err)
		}
	}

	m.logger.Debug("connected", "dbms", dialect.Name, "dsn", config.RedactDSN(dsn))

	return m, nil
}

func ping(ctx context.Context, db *sqlx.DB, retries int, m *Manager) error {
	if retries < 0 {
		retries = 0
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = m.retryInterval
	policy.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(retries)), ctx)

	return backoff.RetryNotify(func() error {
		return db.PingContext(ctx)
	}, b, func(err error, wait time.Duration) {
		m.logger.Warn("database not reachable, retrying", "error", err, "wait", wait)
	})
}
