package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/aqasim81/sqlmigrate/internal/config"
	"github.com/aqasim81/sqlmigrate/internal/engine"
)

const version = "0.1.0"

// DefaultConfigFile is read when --config is not given; it may be absent.
const DefaultConfigFile = "sqlmigrate.yml"

// AppConfig holds the loaded configuration, set during PersistentPreRunE.
var AppConfig *config.Config //nolint:gochecknoglobals // standard Cobra pattern for shared config

// rootCmd is the base command for the sqlmigrate CLI.
var rootCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:     "sqlmigrate",
	Version: version,
	Short:   "Transactional SQL schema migrations",
	Long: `sqlmigrate applies and reverts directory-based SQL migrations against
PostgreSQL, MySQL and SQLite. Each migration runs in its own transaction
together with its history row, and a batch stops at the first failure.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return loadConfig(cmd)
	},
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	flags := rootCmd.PersistentFlags()
	flags.String("config", DefaultConfigFile, "path to configuration file")
	flags.String("dbms", "", "database system (pgsql, mysql, sqlite)")
	flags.String("host", "", "database host, optionally with :port")
	flags.String("dbname", "", "database name, or file path for sqlite")
	flags.String("user", "", "database user")
	flags.String("directory", "", "path to the migrations directory")
	flags.String("log-level", "info", "diagnostic log level (trace, debug, info, warn, error)")
	flags.Bool("no-color", false, "disable colored output")
}

// Execute runs the root command and exits. Called from main.
func Execute() {
	os.Exit(run())
}

// run executes the root command. An interrupt cancels the running batch;
// the step in flight is rolled back.
func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		printError(rootCmd.ErrOrStderr(), err)
		return exitCode(err)
	}

	return 0
}

// loadConfig loads configuration with precedence: flag > env > file.
func loadConfig(cmd *cobra.Command) error {
	configPath, _ := cmd.Flags().GetString("config")
	allowMissing := !cmd.Flags().Changed("config")

	cfg, err := config.Load(configPath, allowMissing)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	if err := config.MergeEnv(cfg); err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	mergeFlags(cmd, cfg)

	if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
		color.NoColor = true
	}

	AppConfig = cfg

	return nil
}

// mergeFlags overrides config with explicitly-set CLI flags.
func mergeFlags(cmd *cobra.Command, cfg *config.Config) {
	overrides := []struct {
		flag string
		dst  *string
	}{
		{"dbms", &cfg.Database.DBMS},
		{"host", &cfg.Database.Host},
		{"dbname", &cfg.Database.DBName},
		{"user", &cfg.Database.User},
		{"directory", &cfg.Migration.Directory},
	}

	for _, o := range overrides {
		if cmd.Flags().Changed(o.flag) {
			*o.dst, _ = cmd.Flags().GetString(o.flag)
		}
	}
}

// newLogger builds the diagnostic logger. It writes to stderr so that
// command output stays clean.
func newLogger(cmd *cobra.Command) hclog.Logger {
	level, _ := cmd.Flags().GetString("log-level")

	colorOpt := hclog.AutoColor
	if color.NoColor {
		colorOpt = hclog.ColorOff
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:   "sqlmigrate",
		Level:  hclog.LevelFromString(level),
		Output: cmd.ErrOrStderr(),
		Color:  colorOpt,
	})
}

// openEngine connects using cfg. Step messages are printed to the
// command's output.
func openEngine(cmd *cobra.Command, cfg *config.Config, opts ...engine.Option) (*engine.Engine, error) {
	logger := newLogger(cmd)
	logger.Debug("connecting", "database", cfg.Database.String())

	opts = append([]engine.Option{
		engine.WithLogger(logger),
		engine.WithSink(newConsoleSink(cmd.OutOrStdout(), cmd.ErrOrStderr())),
	}, opts...)

	return engine.Open(commandContext(cmd), cfg, opts...)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}

	return context.Background()
}
