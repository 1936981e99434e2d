package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/jmoiron/sqlx"
)

const defaultRetryInterval = 500 * time.Millisecond

// Statement is a query with its named parameters.
type Statement struct {
	Query  string
	Params map[string]any
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for connection diagnostics.
func WithLogger(logger hclog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithRetryInterval sets the first wait between connection attempts.
func WithRetryInterval(d time.Duration) Option {
	return func(m *Manager) {
		m.retryInterval = d
	}
}

// Manager owns one database session and at most one transaction on it.
// Statements registered with Defer run, in order, just before the
// transaction commits. A Manager is not safe for concurrent use.
type Manager struct {
	db      *sqlx.DB
	conn    *sqlx.Conn
	dialect Dialect
	tx      *sqlx.Tx
	queue   []Statement
	closed  bool

	logger        hclog.Logger
	retryInterval time.Duration
}

// NewManager pins a single connection from db and returns a Manager for it.
// The Manager takes ownership of db and closes it on Close.
func NewManager(ctx context.Context, db *sqlx.DB, dialect Dialect, opts ...Option) (*Manager, error) {
	m := newManager(dialect, opts)

	if err := m.attach(ctx, db); err != nil {
		return nil, err
	}

	return m, nil
}

func newManager(dialect Dialect, opts []Option) *Manager {
	m := &Manager{
		dialect:       dialect,
		logger:        hclog.NewNullLogger(),
		retryInterval: defaultRetryInterval,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

func (m *Manager) attach(ctx context.Context, db *sqlx.DB) error {
	conn, err := db.Connx(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	m.db = db
	m.conn = conn

	return nil
}

// Dialect returns the dialect of the connected database.
func (m *Manager) Dialect() Dialect {
	return m.dialect
}

// InTransaction reports whether a transaction is active.
func (m *Manager) InTransaction() bool {
	return m.tx != nil
}

// Begin starts a transaction. It is a no-op when one is already active.
func (m *Manager) Begin(ctx context.Context) error {
	if m.closed {
		return ErrConnectionClosed
	}

	if m.tx != nil {
		return nil
	}

	tx, err := m.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %w", ErrQueryFailed, err)
	}

	m.tx = tx

	return nil
}

// Defer queues a statement to run when the active transaction commits.
func (m *Manager) Defer(query string, params map[string]any) error {
	if m.closed {
		return ErrConnectionClosed
	}

	if m.tx == nil {
		return ErrNoTransaction
	}

	m.queue = append(m.queue, Statement{Query: query, Params: params})

	return nil
}

// Pending returns the number of deferred statements waiting for commit.
func (m *Manager) Pending() int {
	return len(m.queue)
}

// Commit runs the deferred statements in the order they were queued and then
// commits. If any of them fails the transaction is rolled back. Either way
// the queue is emptied and no transaction is active afterwards.
func (m *Manager) Commit(ctx context.Context) error {
	if m.closed {
		return ErrConnectionClosed
	}

	if m.tx == nil {
		return ErrNoTransaction
	}

	tx, queue := m.tx, m.queue
	defer m.reset()

	for i, st := range queue {
		if _, err := execOn(ctx, tx, st.Query, st.Params); err != nil {
			return abort(tx, fmt.Errorf("deferred statement %d of %d: %w", i+1, len(queue), err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing transaction: %w", ErrQueryFailed, err)
	}

	return nil
}

// Rollback discards the active transaction and the deferred statements.
// It is a no-op without a transaction.
func (m *Manager) Rollback() error {
	if m.tx == nil {
		m.queue = nil

		return nil
	}

	tx := m.tx
	defer m.reset()

	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("%w: rolling back transaction: %w", ErrQueryFailed, err)
	}

	return nil
}

// Close rolls back any open transaction and releases the connection.
// Calling Close more than once is a no-op.
func (m *Manager) Close() error {
	if m.closed {
		return nil
	}

	m.closed = true

	var result *multierror.Error

	if m.tx != nil {
		if err := m.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			result = multierror.Append(result, err)
		}

		m.reset()
	}

	if err := m.conn.Close(); err != nil {
		result = multierror.Append(result, err)
	}

	if err := m.db.Close(); err != nil {
		result = multierror.Append(result, err)
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: closing: %w", ErrConnectionFailed, err)
	}

	return nil
}

func (m *Manager) reset() {
	m.tx = nil
	m.queue = nil
}

// queryer returns the handle statements run on: the transaction when one
// is active, the pinned connection otherwise.
func (m *Manager) queryer() (queryer, error) {
	if m.closed {
		return nil, ErrConnectionClosed
	}

	if m.tx != nil {
		return m.tx, nil
	}

	return m.conn, nil
}

func abort(tx *sqlx.Tx, cause error) error {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return multierror.Append(cause, fmt.Errorf("rolling back: %w", err))
	}

	return cause
}
