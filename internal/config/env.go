package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix of every environment variable read by MergeEnv.
const EnvPrefix = "MIGRATE"

// envOverlay mirrors the overridable fields. Pointers distinguish "unset"
// from "set to the zero value". Keys come from the field names rather than
// envconfig tags: a tag would also match the unprefixed variable, and USER
// or HOST are set in most shells.
type envOverlay struct {
	DBMS             *string
	Host             *string
	DBName           *string
	User             *string
	Password         *string
	Charset          *string
	ConnectRetries   *int `split_words:"true"`
	Schema           *string
	Table            *string
	Directory        *string
	StepDelay        *time.Duration `split_words:"true"`
	LockTimeout      *time.Duration `split_words:"true"`
	StatementTimeout *time.Duration `split_words:"true"`
}

// MergeEnv overrides config fields from MIGRATE_* environment variables.
// Malformed values are reported rather than ignored.
func MergeEnv(cfg *Config) error {
	var env envOverlay
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("reading %s_* environment: %w", EnvPrefix, err)
	}

	override(&cfg.Database.DBMS, env.DBMS)
	override(&cfg.Database.Host, env.Host)
	override(&cfg.Database.DBName, env.DBName)
	override(&cfg.Database.User, env.User)
	override(&cfg.Database.Password, env.Password)
	override(&cfg.Database.Charset, env.Charset)
	override(&cfg.Database.ConnectRetries, env.ConnectRetries)
	override(&cfg.Migration.Schema, env.Schema)
	override(&cfg.Migration.Table, env.Table)
	override(&cfg.Migration.Directory, env.Directory)
	override(&cfg.Migration.StepDelay, env.StepDelay)
	override(&cfg.Migration.LockTimeout, env.LockTimeout)
	override(&cfg.Migration.StatementTimeout, env.StatementTimeout)

	return nil
}

func override[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
