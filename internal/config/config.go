package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for configuration fields.
const (
	DefaultDBMS           = "pgsql"
	DefaultHost           = "localhost"
	DefaultCharset        = "UTF8"
	DefaultConnectRetries = 3
	DefaultSchema         = ""
	DefaultTable          = "migration"
	DefaultDirectory      = "./migrations"
	DefaultStepDelay      = time.Second
)

// ErrInvalidConfig indicates a configuration value failed validation.
var ErrInvalidConfig = errors.New("invalid configuration")

var identifierPattern = regexp.MustCompile( //nolint:gochecknoglobals // compiled once, used by Validate
	`^[A-Za-z_][A-Za-z0-9_]*$`,
)

// Database holds the connection settings.
type Database struct {
	DBMS           string
	Host           string
	DBName         string
	User           string
	Password       string
	Charset        string
	ConnectRetries int
}

// String renders the settings without the password.
func (d Database) String() string {
	password := ""
	if d.Password != "" {
		password = "***"
	}

	return fmt.Sprintf("%s://%s:%s@%s/%s", d.DBMS, d.User, password, d.Host, d.DBName)
}

// Migration holds the bookkeeping settings: where units live and which
// table records them. An empty Schema selects the dialect's default.
type Migration struct {
	Schema           string
	Table            string
	Directory        string
	StepDelay        time.Duration
	LockTimeout      time.Duration
	StatementTimeout time.Duration
}

// Config holds the application configuration loaded from file, environment, and flags.
type Config struct {
	Database  Database
	Migration Migration
}

type yamlDatabase struct {
	DBMS           string `yaml:"dbms"`
	Host           string `yaml:"host"`
	DBName         string `yaml:"dbname"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	Charset        string `yaml:"charset"`
	ConnectRetries *int   `yaml:"connect_retries"`
}

type yamlMigration struct {
	Schema           string `yaml:"schema"`
	Table            string `yaml:"table"`
	Directory        string `yaml:"directory"`
	StepDelay        string `yaml:"step_delay"`
	LockTimeout      string `yaml:"lock_timeout"`
	StatementTimeout string `yaml:"statement_timeout"`
}

// yamlConfig is the raw YAML file representation with string durations.
type yamlConfig struct {
	Database  yamlDatabase  `yaml:"database"`
	Migration yamlMigration `yaml:"migration"`
}

// New returns a Config populated with default values.
func New() *Config {
	return &Config{
		Database: Database{
			DBMS:           DefaultDBMS,
			Host:           DefaultHost,
			Charset:        DefaultCharset,
			ConnectRetries: DefaultConnectRetries,
		},
		Migration: Migration{
			Schema:    DefaultSchema,
			Table:     DefaultTable,
			Directory: DefaultDirectory,
			StepDelay: DefaultStepDelay,
		},
	}
}

// Load reads a YAML configuration file and returns a Config.
// If allowMissing is true and the file does not exist, defaults are returned.
func Load(path string, allowMissing bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && allowMissing {
			return New(), nil
		}

		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	var raw yamlConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	return fromYAML(&raw)
}

// fromYAML converts the raw YAML representation to a Config with defaults applied.
func fromYAML(raw *yamlConfig) (*Config, error) {
	cfg := New()

	db := &cfg.Database
	setString(&db.DBMS, raw.Database.DBMS)
	setString(&db.Host, raw.Database.Host)
	setString(&db.DBName, raw.Database.DBName)
	setString(&db.User, raw.Database.User)
	setString(&db.Password, raw.Database.Password)
	setString(&db.Charset, raw.Database.Charset)

	if raw.Database.ConnectRetries != nil {
		db.ConnectRetries = *raw.Database.ConnectRetries
	}

	m := &cfg.Migration
	setString(&m.Schema, raw.Migration.Schema)
	setString(&m.Table, raw.Migration.Table)
	setString(&m.Directory, raw.Migration.Directory)

	durations := []struct {
		key   string
		value string
		dst   *time.Duration
	}{
		{"step_delay", raw.Migration.StepDelay, &m.StepDelay},
		{"lock_timeout", raw.Migration.LockTimeout, &m.LockTimeout},
		{"statement_timeout", raw.Migration.StatementTimeout, &m.StatementTimeout},
	}

	for _, d := range durations {
		if d.value == "" {
			continue
		}

		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return nil, fmt.Errorf("parsing %s %q: %w", d.key, d.value, err)
		}

		*d.dst = parsed
	}

	return cfg, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Validate checks the values the engine relies on. Schema and table are
// interpolated into DDL, so they must be plain identifiers.
func (c *Config) Validate() error {
	if c.Database.DBMS == "" {
		return fmt.Errorf("%w: dbms is required", ErrInvalidConfig)
	}

	if c.Database.DBName == "" {
		return fmt.Errorf("%w: dbname is required", ErrInvalidConfig)
	}

	if c.Database.ConnectRetries < 0 {
		return fmt.Errorf("%w: connect_retries must not be negative", ErrInvalidConfig)
	}

	if c.Migration.Schema != "" && !identifierPattern.MatchString(c.Migration.Schema) {
		return fmt.Errorf("%w: schema %q is not a valid identifier", ErrInvalidConfig, c.Migration.Schema)
	}

	if !identifierPattern.MatchString(c.Migration.Table) {
		return fmt.Errorf("%w: table %q is not a valid identifier", ErrInvalidConfig, c.Migration.Table)
	}

	if c.Migration.Directory == "" {
		return fmt.Errorf("%w: directory is required", ErrInvalidConfig)
	}

	if c.Migration.StepDelay < 0 || c.Migration.LockTimeout < 0 || c.Migration.StatementTimeout < 0 {
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidConfig)
	}

	return nil
}
