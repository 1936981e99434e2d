package database

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/go-sql-driver/mysql"

	// Registered drivers: "pgx" and "sqlite".
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/aqasim81/sqlmigrate/internal/config"
)

// Dialect names understood by LookupDialect.
const (
	Postgres = "postgres"
	MySQL    = "mysql"
	SQLite   = "sqlite"
)

var charsetPattern = regexp.MustCompile( //nolint:gochecknoglobals // compiled once
	`^[A-Za-z0-9_-]+$`,
)

// Dialect captures what differs between database engines: the driver, how a
// DSN is built and which statements prepare a fresh session.
type Dialect struct {
	Name   string
	Driver string

	dsn     func(cfg config.Database) (string, error)
	session func(charset string) []string
}

//nolint:gochecknoglobals // static alias table
var dialects = map[string]Dialect{
	"pgsql":      postgresDialect,
	"postgres":   postgresDialect,
	"postgresql": postgresDialect,
	"mysql":      mysqlDialect,
	"mariadb":    mysqlDialect,
	"sqlite":     sqliteDialect,
	"sqlite3":    sqliteDialect,
}

//nolint:gochecknoglobals // dialect definitions
var (
	postgresDialect = Dialect{
		Name:   Postgres,
		Driver: "pgx",
		dsn:    postgresDSN,
		session: func(charset string) []string {
			return []string{fmt.Sprintf("SET client_encoding TO '%s'", charset)}
		},
	}

	mysqlDialect = Dialect{
		Name:   MySQL,
		Driver: "mysql",
		dsn:    mysqlDSN,
		session: func(charset string) []string {
			return []string{fmt.Sprintf("SET NAMES '%s'", charset)}
		},
	}

	sqliteDialect = Dialect{
		Name:   SQLite,
		Driver: "sqlite",
		dsn:    sqliteDSN,
		session: func(string) []string {
			return []string{"PRAGMA foreign_keys = ON"}
		},
	}
)

// LookupDialect resolves a dbms name or alias, case-insensitively.
func LookupDialect(dbms string) (Dialect, error) {
	d, ok := dialects[strings.ToLower(strings.TrimSpace(dbms))]
	if !ok {
		return Dialect{}, fmt.Errorf("%w: %q", ErrUnknownDialect, dbms)
	}

	return d, nil
}

// DSN builds the driver connection string for cfg.
func (d Dialect) DSN(cfg config.Database) (string, error) {
	if cfg.DBName == "" {
		return "", fmt.Errorf("%w: dbname is required", ErrInvalidDSN)
	}

	return d.dsn(cfg)
}

// SessionSetup returns the statements run once on a new connection: the
// character set and strict-mode settings.
func (d Dialect) SessionSetup(charset string) ([]string, error) {
	if charset == "" {
		return d.session(config.DefaultCharset), nil
	}

	if !charsetPattern.MatchString(charset) {
		return nil, fmt.Errorf("%w: charset %q", ErrInvalidDSN, charset)
	}

	return d.session(charset), nil
}

// QualifiedTable returns schema.table, or table alone when schema is empty.
// Both are expected to be validated identifiers.
func (d Dialect) QualifiedTable(schema, table string) string {
	if schema == "" {
		return table
	}

	return schema + "." + table
}

// TableExistsQuery returns a query counting tables named :table in :schema.
// An empty :schema means the connection's current schema.
func (d Dialect) TableExistsQuery(schema string) string {
	switch d.Name {
	case SQLite:
		if schema == "" {
			schema = "main"
		}

		return "SELECT COUNT(*) FROM " + schema + ".sqlite_master WHERE type = 'table' AND name = :table"
	case MySQL:
		return "SELECT COUNT(*) FROM information_schema.tables " +
			"WHERE table_schema = COALESCE(NULLIF(:schema, ''), DATABASE()) AND table_name = :table"
	default:
		return "SELECT COUNT(*) FROM information_schema.tables " +
			"WHERE table_schema = COALESCE(NULLIF(:schema, ''), current_schema()) AND table_name = :table"
	}
}

// SupportsSessionTimeouts reports whether lock_timeout and statement_timeout
// can be set per transaction.
func (d Dialect) SupportsSessionTimeouts() bool {
	return d.Name == Postgres
}

func postgresDSN(cfg config.Database) (string, error) {
	u := url.URL{
		Scheme: "postgres",
		Host:   cfg.Host,
		Path:   "/" + cfg.DBName,
	}

	switch {
	case cfg.User != "" && cfg.Password != "":
		u.User = url.UserPassword(cfg.User, cfg.Password)
	case cfg.User != "":
		u.User = url.User(cfg.User)
	}

	return u.String(), nil
}

func mysqlDSN(cfg config.Database) (string, error) {
	c := mysql.NewConfig()
	c.User = cfg.User
	c.Passwd = cfg.Password
	c.Net = "tcp"
	c.Addr = cfg.Host
	c.DBName = cfg.DBName
	// Scripts hold several statements per file.
	c.MultiStatements = true
	c.Params = map[string]string{"sql_mode": "'TRADITIONAL'"}

	return c.FormatDSN(), nil
}

func sqliteDSN(cfg config.Database) (string, error) {
	if strings.ContainsAny(cfg.DBName, "\x00") {
		return "", fmt.Errorf("%w: dbname contains a NUL byte", ErrInvalidDSN)
	}

	return cfg.DBName, nil
}
