package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"github.com/aqasim81/sqlmigrate/internal/config"
	"github.com/aqasim81/sqlmigrate/internal/database"
	"github.com/aqasim81/sqlmigrate/internal/executor"
	"github.com/aqasim81/sqlmigrate/internal/ledger"
	"github.com/aqasim81/sqlmigrate/internal/lint"
	"github.com/aqasim81/sqlmigrate/internal/migration"
)

// Engine owns every component of a migration run and the connection they
// share.
type Engine struct {
	manager *database.Manager
	repo    *migration.Repository
	exec    *executor.Executor
}

type options struct {
	logger     hclog.Logger
	sink       executor.Sink
	onProgress func(executor.ProgressEvent)
	dryRun     bool
	clock      func() time.Time
}

// Option configures Open.
type Option func(*options)

// WithLogger sets the logger used for connection diagnostics and step
// messages.
func WithLogger(l hclog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithSink sets where step messages go. It defaults to the logger.
func WithSink(s executor.Sink) Option {
	return func(o *options) { o.sink = s }
}

// WithProgressCallback sets a function called for each unit processed.
func WithProgressCallback(fn func(executor.ProgressEvent)) Option {
	return func(o *options) { o.onProgress = fn }
}

// WithDryRun makes Up and Down report their batch without running it.
func WithDryRun(b bool) Option {
	return func(o *options) { o.dryRun = b }
}

// WithClock sets the time source for new unit ids and ledger timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.clock = now }
}

// Open validates cfg, connects, and makes sure the ledger table exists.
// Any failure here is fatal to the run.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Engine, error) {
	o := &options{logger: hclog.NewNullLogger()}
	for _, opt := range opts {
		opt(o)
	}

	if o.sink == nil {
		o.sink = o.logger
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m, err := database.Connect(ctx, cfg.Database, database.WithLogger(o.logger.Named("database")))
	if err != nil {
		return nil, err
	}

	stmts := database.NewStatementExecutor(m)

	var (
		repoOpts   []migration.RepositoryOption
		ledgerOpts []ledger.Option
	)

	if o.clock != nil {
		repoOpts = append(repoOpts, migration.WithClock(o.clock))
		ledgerOpts = append(ledgerOpts, ledger.WithClock(o.clock))
	}

	repo := migration.NewRepository(cfg.Migration.Directory, repoOpts...)
	l := ledger.New(stmts, cfg.Migration.Schema, cfg.Migration.Table, ledgerOpts...)

	created, err := l.EnsureSchema(ctx)
	if err != nil {
		if closeErr := m.Close(); closeErr != nil {
			return nil, multierror.Append(err, closeErr)
		}

		return nil, err
	}

	if created {
		o.sink.Info(fmt.Sprintf("Migration table %s was created successfully.", l.Table()))
	}

	exec := executor.New(m, stmts, l, repo,
		executor.WithDialect(m.Dialect()),
		executor.WithStepDelay(cfg.Migration.StepDelay),
		executor.WithLockTimeout(cfg.Migration.LockTimeout),
		executor.WithStatementTimeout(cfg.Migration.StatementTimeout),
		executor.WithDryRun(o.dryRun),
		executor.WithLogger(o.sink),
		executor.WithProgressCallback(o.onProgress),
	)

	return &Engine{
		manager: m,
		repo:    repo,
		exec:    exec,
	}, nil
}

// Dialect returns the dialect of the open connection.
func (e *Engine) Dialect() database.Dialect {
	return e.manager.Dialect()
}

// Up applies up to count pending units; executor.All applies every one.
func (e *Engine) Up(ctx context.Context, count int) ([]string, error) {
	return e.exec.Up(ctx, count)
}

// Down reverts up to count applied units, newest first.
func (e *Engine) Down(ctx context.Context, count int) ([]string, error) {
	return e.exec.Down(ctx, count)
}

// History returns up to limit ledger entries, newest first. Zero means all.
func (e *Engine) History(ctx context.Context, limit int) ([]ledger.Entry, error) {
	return e.exec.History(ctx, limit)
}

// Pending returns the units that have not been applied, oldest first.
func (e *Engine) Pending(ctx context.Context) ([]migration.Unit, error) {
	return e.exec.Pending(ctx)
}

// Create makes a new empty unit in the migration directory.
func (e *Engine) Create(name string) (migration.Unit, error) {
	return e.repo.Create(name)
}

// Check parses the up scripts of every pending unit and reports statements
// that cannot run inside a step transaction.
func (e *Engine) Check(ctx context.Context) (*lint.Report, error) {
	if e.manager.Dialect().Name != database.Postgres {
		return nil, fmt.Errorf("%w: dialect is %s", lint.ErrUnsupportedDialect, e.manager.Dialect().Name)
	}

	pending, err := e.Pending(ctx)
	if err != nil {
		return nil, err
	}

	return lint.New().Check(pending, e.repo.ReadScript)
}

// Close rolls back any open transaction and releases the connection.
// Calling it twice is safe.
func (e *Engine) Close() error {
	return e.manager.Close()
}
