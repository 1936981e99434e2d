package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/aqasim81/sqlmigrate/internal/engine"
	"github.com/aqasim81/sqlmigrate/internal/executor"
)

// errCheckFailed is returned when up --check finds statements that would fail.
var errCheckFailed = errors.New("up aborted: pending migrations failed the check")

var upCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "up [count]",
	Short: "Apply pending migrations",
	Long: `Apply the oldest pending migrations, all of them unless count is given.
Each migration runs in its own transaction together with its history row.
The batch stops at the first failing migration; earlier ones stay applied.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUp,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	upCmd.Flags().Bool("dry-run", false, "list what would be applied without executing")
	upCmd.Flags().Bool("check", false, "check pending scripts first and abort on errors (postgres)")
	upCmd.Flags().Duration("step-delay", 0, "override the pause between migrations (e.g., 0s, 2s)")
	rootCmd.AddCommand(upCmd)
}

func runUp(cmd *cobra.Command, args []string) error {
	count, err := parseCount(args)
	if err != nil {
		return err
	}

	cfg := *AppConfig

	if cmd.Flags().Changed("step-delay") {
		cfg.Migration.StepDelay, _ = cmd.Flags().GetDuration("step-delay")
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")

	eng, err := openEngine(cmd, &cfg, engine.WithDryRun(dryRun))
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	ctx := commandContext(cmd)

	if check, _ := cmd.Flags().GetBool("check"); check {
		report, err := eng.Check(ctx)
		if err != nil {
			return err
		}

		printReport(cmd.OutOrStdout(), report)

		if report.HasErrors() {
			return errCheckFailed
		}
	}

	done, err := eng.Up(ctx, count)
	if err != nil {
		return err
	}

	if len(done) == 0 && !dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "No new migrations found. Your system is up-to-date.")
	}

	return nil
}

// parseCount reads the optional count argument. No argument means all.
func parseCount(args []string) (int, error) {
	if len(args) == 0 {
		return executor.All, nil
	}

	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("count must be a non-negative integer, got %q", args[0])
	}

	return n, nil
}
