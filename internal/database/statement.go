package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// queryer is satisfied by both *sqlx.Conn and *sqlx.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error)
	QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row
	Rebind(query string) string
}

// StatementExecutor binds named parameters and runs statements on a
// Manager's session, inside its transaction when one is active.
type StatementExecutor struct {
	manager *Manager
	last    sql.Result
}

// NewStatementExecutor returns a StatementExecutor running on m.
func NewStatementExecutor(m *Manager) *StatementExecutor {
	return &StatementExecutor{manager: m}
}

// Dialect returns the dialect of the underlying session.
func (s *StatementExecutor) Dialect() Dialect {
	return s.manager.Dialect()
}

// Execute binds params to the :name placeholders in query and runs it.
// Without params the query is sent verbatim, so scripts holding several
// statements or literal colons are passed through untouched.
func (s *StatementExecutor) Execute(ctx context.Context, query string, params map[string]any) (sql.Result, error) {
	q, err := s.manager.queryer()
	if err != nil {
		return nil, err
	}

	res, err := execOn(ctx, q, query, params)
	if err != nil {
		return nil, err
	}

	s.last = res

	return res, nil
}

// QueryAll returns every row as a column-name keyed map.
func (s *StatementExecutor) QueryAll(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	var out []map[string]any

	err := s.each(ctx, query, params, func(rows *sqlx.Rows) (bool, error) {
		row := make(map[string]any)
		if err := rows.MapScan(row); err != nil {
			return false, err
		}

		for k, v := range row {
			row[k] = normalize(v)
		}

		out = append(out, row)

		return true, nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// QueryRow returns the first row, or ErrNoRows.
func (s *StatementExecutor) QueryRow(ctx context.Context, query string, params map[string]any) (map[string]any, error) {
	var out map[string]any

	err := s.each(ctx, query, params, func(rows *sqlx.Rows) (bool, error) {
		out = make(map[string]any)
		if err := rows.MapScan(out); err != nil {
			return false, err
		}

		for k, v := range out {
			out[k] = normalize(v)
		}

		return false, nil
	})
	if err != nil {
		return nil, err
	}

	if out == nil {
		return nil, ErrNoRows
	}

	return out, nil
}

// QueryColumn returns the first column of every row.
func (s *StatementExecutor) QueryColumn(ctx context.Context, query string, params map[string]any) ([]any, error) {
	var out []any

	err := s.each(ctx, query, params, func(rows *sqlx.Rows) (bool, error) {
		values, err := rows.SliceScan()
		if err != nil {
			return false, err
		}

		if len(values) > 0 {
			out = append(out, normalize(values[0]))
		}

		return true, nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// QueryOne returns the first column of the first row, or ErrNoRows.
func (s *StatementExecutor) QueryOne(ctx context.Context, query string, params map[string]any) (any, error) {
	var (
		out   any
		found bool
	)

	err := s.each(ctx, query, params, func(rows *sqlx.Rows) (bool, error) {
		values, err := rows.SliceScan()
		if err != nil {
			return false, err
		}

		if len(values) > 0 {
			out = normalize(values[0])
			found = true
		}

		return false, nil
	})
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, ErrNoRows
	}

	return out, nil
}

// Select scans all rows into dest, a pointer to a slice of structs.
func (s *StatementExecutor) Select(ctx context.Context, dest any, query string, params map[string]any) error {
	q, err := s.manager.queryer()
	if err != nil {
		return err
	}

	bound, args, err := bind(q, query, params)
	if err != nil {
		return err
	}

	if err := sqlx.SelectContext(ctx, q, dest, bound, args...); err != nil {
		return queryError(err)
	}

	return nil
}

// Get scans a single row into dest, or returns ErrNoRows.
func (s *StatementExecutor) Get(ctx context.Context, dest any, query string, params map[string]any) error {
	q, err := s.manager.queryer()
	if err != nil {
		return err
	}

	bound, args, err := bind(q, query, params)
	if err != nil {
		return err
	}

	if err := sqlx.GetContext(ctx, q, dest, bound, args...); err != nil {
		return queryError(err)
	}

	return nil
}

// LastInsertID returns the identifier generated by the most recent insert
// on this session.
func (s *StatementExecutor) LastInsertID(ctx context.Context) (int64, error) {
	if s.manager.Dialect().Name == Postgres {
		v, err := s.QueryOne(ctx, "SELECT lastval()", nil)
		if err != nil {
			return 0, err
		}

		id, ok := v.(int64)
		if !ok {
			return 0, fmt.Errorf("%w: lastval returned %T", ErrQueryFailed, v)
		}

		return id, nil
	}

	if s.last == nil {
		return 0, fmt.Errorf("%w: no statement executed", ErrQueryFailed)
	}

	id, err := s.last.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	return id, nil
}

// each runs query and calls fn for every row until fn returns false.
func (s *StatementExecutor) each(
	ctx context.Context,
	query string,
	params map[string]any,
	fn func(rows *sqlx.Rows) (bool, error),
) error {
	q, err := s.manager.queryer()
	if err != nil {
		return err
	}

	bound, args, err := bind(q, query, params)
	if err != nil {
		return err
	}

	rows, err := q.QueryxContext(ctx, bound, args...)
	if err != nil {
		return queryError(err)
	}
	defer rows.Close()

	for rows.Next() {
		more, err := fn(rows)
		if err != nil {
			return queryError(err)
		}

		if !more {
			return nil
		}
	}

	if err := rows.Err(); err != nil {
		return queryError(err)
	}

	return nil
}

func execOn(ctx context.Context, q queryer, query string, params map[string]any) (sql.Result, error) {
	bound, args, err := bind(q, query, params)
	if err != nil {
		return nil, err
	}

	res, err := q.ExecContext(ctx, bound, args...)
	if err != nil {
		return nil, queryError(err)
	}

	return res, nil
}

func bind(q queryer, query string, params map[string]any) (string, []any, error) {
	if len(params) == 0 {
		return query, nil, nil
	}

	named, args, err := sqlx.Named(query, params)
	if err != nil {
		return "", nil, fmt.Errorf("%w: binding parameters: %w", ErrQueryFailed, err)
	}

	return q.Rebind(named), args, nil
}

func queryError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNoRows
	}

	return fmt.Errorf("%w: %w", ErrQueryFailed, err)
}

func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}

	return v
}
