package executor

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/aqasim81/sqlmigrate/internal/database"
	"github.com/aqasim81/sqlmigrate/internal/ledger"
	"github.com/aqasim81/sqlmigrate/internal/migration"
)

// Progress status constants reported via ProgressEvent.
const (
	StatusStarting  = "starting"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// Direction is the way a step moves a unit.
type Direction string

// Step directions.
const (
	Up   Direction = "up"
	Down Direction = "down"
)

// All selects every eligible unit in Up and Down.
const All = -1

// DefaultStepDelay is the pause between two steps of a batch.
const DefaultStepDelay = time.Second

// ProgressEvent is emitted by the executor for each unit processed.
type ProgressEvent struct {
	Unit      migration.Unit
	Direction Direction
	Status    string
	Duration  time.Duration
	Error     error
}

// Sink receives one line per processed step. hclog.Logger satisfies it.
type Sink interface {
	Info(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// Transactor is the transaction control a step needs.
type Transactor interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback() error
	Defer(query string, params map[string]any) error
}

// ScriptRunner executes SQL on the transactor's session.
type ScriptRunner interface {
	Execute(ctx context.Context, query string, params map[string]any) (sql.Result, error)
}

// Ledger abstracts the applied-migrations table for testability.
type Ledger interface {
	List(ctx context.Context, limit int) ([]ledger.Entry, error)
	Applied(ctx context.Context) (map[string]struct{}, error)
	Record(ctx context.Context, name string) error
	Remove(ctx context.Context, name string) error
}

// Repository abstracts the migration directory for testability.
type Repository interface {
	Discover() ([]migration.Unit, error)
	Unit(id string) migration.Unit
	ReadScript(path string) (string, error)
}

// stepFunc runs one unit in one direction.
type stepFunc func(ctx context.Context, dir Direction, u migration.Unit) error

// Executor applies and reverts units one transaction at a time.
// It is not safe for concurrent use, and two executors must not share a
// ledger table.
type Executor struct {
	tx     Transactor
	stmts  ScriptRunner
	ledger Ledger
	repo   Repository

	dialect          database.Dialect
	stepDelay        time.Duration
	lockTimeout      time.Duration
	statementTimeout time.Duration
	dryRun           bool
	sink             Sink
	onProgress       func(ProgressEvent)

	sleep   func(ctx context.Context, d time.Duration) error
	runStep stepFunc
}

// Option configures an Executor.
type Option func(*Executor)

// WithDialect enables dialect specific behavior such as session timeouts.
func WithDialect(d database.Dialect) Option {
	return func(e *Executor) { e.dialect = d }
}

// WithStepDelay sets the pause between steps. Units created within the
// same second would otherwise share a timestamp; zero disables it.
func WithStepDelay(d time.Duration) Option {
	return func(e *Executor) { e.stepDelay = d }
}

// WithLockTimeout sets the per-transaction lock_timeout.
func WithLockTimeout(d time.Duration) Option {
	return func(e *Executor) { e.lockTimeout = d }
}

// WithStatementTimeout sets the per-transaction statement_timeout.
func WithStatementTimeout(d time.Duration) Option {
	return func(e *Executor) { e.statementTimeout = d }
}

// WithDryRun enables dry-run mode where no SQL is executed.
func WithDryRun(b bool) Option {
	return func(e *Executor) { e.dryRun = b }
}

// WithLogger sets the sink that receives per-step messages.
func WithLogger(s Sink) Option {
	return func(e *Executor) { e.sink = s }
}

// WithProgressCallback sets a function called for each unit processed.
func WithProgressCallback(fn func(ProgressEvent)) Option {
	return func(e *Executor) { e.onProgress = fn }
}

// New creates an Executor. tx and stmts must share one session.
func New(tx Transactor, stmts ScriptRunner, l Ledger, repo Repository, opts ...Option) *Executor {
	e := &Executor{
		tx:        tx,
		stmts:     stmts,
		ledger:    l,
		repo:      repo,
		stepDelay: DefaultStepDelay,
		sink:      hclog.NewNullLogger(),
		sleep:     sleepContext,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.runStep == nil {
		e.runStep = e.executeStep
	}

	return e
}

// Up applies the first count pending units in ascending order, or all of
// them when count is All. It returns the ids applied before any failure.
func (e *Executor) Up(ctx context.Context, count int) ([]string, error) {
	pending, err := e.Pending(ctx)
	if err != nil {
		return nil, err
	}

	return e.run(ctx, Up, take(pending, count))
}

// Down reverts the count most recently applied units, newest first, or all
// of them when count is All. It returns the ids reverted before any failure.
func (e *Executor) Down(ctx context.Context, count int) ([]string, error) {
	if count == 0 {
		return nil, nil
	}

	limit := count
	if count < 0 {
		limit = 0
	}

	entries, err := e.ledger.List(ctx, limit)
	if err != nil {
		return nil, err
	}

	units := make([]migration.Unit, len(entries))
	for i, entry := range entries {
		units[i] = e.repo.Unit(entry.Name)
	}

	return e.run(ctx, Down, units)
}

// History returns up to limit ledger entries, newest first. Zero means all.
func (e *Executor) History(ctx context.Context, limit int) ([]ledger.Entry, error) {
	return e.ledger.List(ctx, limit)
}

// Pending returns the discovered units missing from the ledger, oldest first.
func (e *Executor) Pending(ctx context.Context) ([]migration.Unit, error) {
	units, err := e.repo.Discover()
	if err != nil {
		return nil, err
	}

	applied, err := e.ledger.Applied(ctx)
	if err != nil {
		return nil, err
	}

	return migration.Pending(units, applied), nil
}

// run processes batch in order and stops at the first failing step.
func (e *Executor) run(ctx context.Context, dir Direction, batch []migration.Unit) ([]string, error) {
	var done []string

	for i, u := range batch {
		if e.dryRun {
			e.fireProgress(ProgressEvent{Unit: u, Direction: dir, Status: StatusSkipped})
			e.sink.Info(fmt.Sprintf("Migration %s would be %s.", u.ID, pastTense(dir)))

			continue
		}

		if i > 0 && e.stepDelay > 0 {
			if err := e.sleep(ctx, e.stepDelay); err != nil {
				return done, err
			}
		}

		if err := e.step(ctx, dir, u); err != nil {
			return done, err
		}

		done = append(done, u.ID)
	}

	return done, nil
}

// step runs one unit and reports the outcome.
func (e *Executor) step(ctx context.Context, dir Direction, u migration.Unit) error {
	e.fireProgress(ProgressEvent{Unit: u, Direction: dir, Status: StatusStarting})

	start := time.Now()
	err := e.runStep(ctx, dir, u)
	duration := time.Since(start)

	if err != nil {
		e.fireProgress(ProgressEvent{
			Unit:      u,
			Direction: dir,
			Status:    StatusFailed,
			Duration:  duration,
			Error:     err,
		})
		e.sink.Error(fmt.Sprintf("Migration %s failed.", u.ID), "error", err)

		return &StepError{ID: u.ID, Direction: dir, Err: err}
	}

	e.fireProgress(ProgressEvent{
		Unit:      u,
		Direction: dir,
		Status:    StatusCompleted,
		Duration:  duration,
	})
	e.sink.Info(fmt.Sprintf("Migration %s was %s successfully.", u.ID, pastTense(dir)), "duration", duration)

	return nil
}

// executeStep reads the script and runs it together with the ledger write
// in a single transaction.
func (e *Executor) executeStep(ctx context.Context, dir Direction, u migration.Unit) error {
	path := u.UpPath
	if dir == Down {
		path = u.DownPath
	}

	script, err := e.repo.ReadScript(path)
	if err != nil {
		return err
	}

	return inTransaction(ctx, e.tx, func() error {
		if err := e.applyTimeouts(ctx); err != nil {
			return err
		}

		if script != "" {
			if _, err := e.stmts.Execute(ctx, script, nil); err != nil {
				return fmt.Errorf("%w: %w", ErrScriptFailed, err)
			}
		}

		if dir == Up {
			return e.ledger.Record(ctx, u.ID)
		}

		return e.ledger.Remove(ctx, u.ID)
	})
}

func (e *Executor) fireProgress(event ProgressEvent) {
	if e.onProgress != nil {
		e.onProgress(event)
	}
}

// take returns the first count units, or all of them when count is negative.
func take(units []migration.Unit, count int) []migration.Unit {
	if count < 0 || count >= len(units) {
		return units
	}

	return units[:count]
}

func pastTense(dir Direction) string {
	if dir == Down {
		return "reverted"
	}

	return "applied"
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
