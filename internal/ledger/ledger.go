package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/aqasim81/sqlmigrate/internal/database"
)

// Entry is one applied migration.
type Entry struct {
	Name      string `db:"name"`
	ApplyTime int64  `db:"apply_time"` // epoch seconds
}

// AppliedAt returns ApplyTime as a UTC time.
func (e Entry) AppliedAt() time.Time {
	return time.Unix(e.ApplyTime, 0).UTC()
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock sets the time source for apply_time.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// Ledger records applied migrations in a database table. Writes go through
// the statement executor, so they join the caller's transaction when one
// is active.
type Ledger struct {
	exec   *database.StatementExecutor
	schema string
	table  string
	now    func() time.Time
}

// New returns a Ledger stored in schema.table. Both names are interpolated
// into SQL and must already be validated identifiers. An empty schema
// selects the connection's default.
func New(exec *database.StatementExecutor, schema, table string, opts ...Option) *Ledger {
	l := &Ledger{exec: exec, schema: schema, table: table, now: time.Now}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Table returns the qualified table name.
func (l *Ledger) Table() string {
	return l.exec.Dialect().QualifiedTable(l.schema, l.table)
}

// EnsureSchema creates the ledger table if it does not exist and reports
// whether it did so. Calling it again is a no-op.
func (l *Ledger) EnsureSchema(ctx context.Context) (bool, error) {
	var count int64

	err := l.exec.Get(ctx, &count, l.exec.Dialect().TableExistsQuery(l.schema), map[string]any{
		"schema": l.schema,
		"table":  l.table,
	})
	if err != nil {
		return false, fmt.Errorf("%w %s: %w", ErrSchemaBootstrap, l.Table(), err)
	}

	if count > 0 {
		return false, nil
	}

	if _, err := l.exec.Execute(ctx, createTableSQL(l.Table(), l.table), nil); err != nil {
		return false, fmt.Errorf("%w %s: %w", ErrSchemaBootstrap, l.Table(), err)
	}

	return true, nil
}

// List returns applied entries newest first, ordered by apply_time then
// name, both descending. A limit of zero or less means no limit.
func (l *Ledger) List(ctx context.Context, limit int) ([]Entry, error) {
	query := "SELECT name, COALESCE(apply_time, 0) AS apply_time FROM " + l.Table() +
		" ORDER BY apply_time DESC, name DESC"

	var params map[string]any
	if limit > 0 {
		query += " LIMIT :limit"
		params = map[string]any{"limit": limit}
	}

	var entries []Entry
	if err := l.exec.Select(ctx, &entries, query, params); err != nil {
		return nil, fmt.Errorf("listing ledger entries: %w", err)
	}

	return entries, nil
}

// Applied returns the names of every applied migration.
func (l *Ledger) Applied(ctx context.Context) (map[string]struct{}, error) {
	var names []string
	if err := l.exec.Select(ctx, &names, "SELECT name FROM "+l.Table(), nil); err != nil {
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	applied := make(map[string]struct{}, len(names))
	for _, n := range names {
		applied[n] = struct{}{}
	}

	return applied, nil
}

// Record inserts name with the current time. A name already present is
// reported as ErrDuplicateEntry.
func (l *Ledger) Record(ctx context.Context, name string) error {
	_, err := l.exec.Execute(ctx,
		"INSERT INTO "+l.Table()+" (name, apply_time) VALUES (:name, :apply_time)",
		map[string]any{"name": name, "apply_time": l.now().Unix()},
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %s: %w", ErrDuplicateEntry, name, err)
		}

		return fmt.Errorf("recording migration %s: %w", name, err)
	}

	return nil
}

// Remove deletes the entry for name. Removing an absent name is a no-op.
func (l *Ledger) Remove(ctx context.Context, name string) error {
	_, err := l.exec.Execute(ctx,
		"DELETE FROM "+l.Table()+" WHERE name = :name",
		map[string]any{"name": name},
	)
	if err != nil {
		return fmt.Errorf("removing migration %s: %w", name, err)
	}

	return nil
}
