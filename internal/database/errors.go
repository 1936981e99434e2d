package database

import (
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrUnknownDialect indicates the configured dbms is not supported.
var ErrUnknownDialect = errors.New("unknown dbms")

// ErrInvalidDSN indicates the connection settings could not be turned into a DSN.
var ErrInvalidDSN = errors.New("invalid database settings")

// ErrConnectionFailed indicates a connection to the database could not be established
// or released.
var ErrConnectionFailed = errors.New("database connection failed")

// ErrConnectionClosed indicates the connection was used after Close.
var ErrConnectionClosed = errors.New("database connection closed")

// ErrQueryFailed indicates the driver rejected a statement.
var ErrQueryFailed = errors.New("query failed")

// ErrNoRows indicates a single-row fetch found nothing.
var ErrNoRows = errors.New("no rows in result set")

// ErrNoTransaction indicates a statement was deferred or committed without
// an active transaction.
var ErrNoTransaction = errors.New("no active transaction")

const (
	pgUniqueViolation     = "23505"
	mysqlDuplicateEntry   = 1062
	sqlitePrimaryCodeMask = 0xff
)

// IsConnectionError reports whether err is fatal to the whole run.
func IsConnectionError(err error) bool {
	return errors.Is(err, ErrUnknownDialect) ||
		errors.Is(err, ErrInvalidDSN) ||
		errors.Is(err, ErrConnectionFailed) ||
		errors.Is(err, ErrConnectionClosed)
}

// IsUniqueViolation reports whether err is a unique or primary key violation
// raised by any of the supported drivers.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		// Extended result codes keep the primary code in the low byte.
		return liteErr.Code()&sqlitePrimaryCodeMask == sqlite3.SQLITE_CONSTRAINT
	}

	return false
}
