package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aqasim81/sqlmigrate/internal/engine"
)

var downCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "down [count]",
	Short: "Revert applied migrations",
	Long: `Revert the most recently applied migrations, newest first, all of them
unless count is given. Each revert runs in its own transaction together
with the removal of its history row.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDown,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	downCmd.Flags().Bool("dry-run", false, "list what would be reverted without executing")
	downCmd.Flags().Duration("step-delay", 0, "override the pause between migrations (e.g., 0s, 2s)")
	rootCmd.AddCommand(downCmd)
}

func runDown(cmd *cobra.Command, args []string) error {
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

	done, err := eng.Down(commandContext(cmd), count)
	if err != nil {
		return err
	}

	if len(done) == 0 && !dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "No applied migrations to revert.")
	}

	return nil
}
