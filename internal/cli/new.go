package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var newCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "new",
	Short: "List pending migrations",
	Args:  cobra.NoArgs,
	RunE:  runNew,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	rootCmd.AddCommand(newCmd)
}

func runNew(cmd *cobra.Command, _ []string) error {
	eng, err := openEngine(cmd, AppConfig)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	pending, err := eng.Pending(commandContext(cmd))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if len(pending) == 0 {
		fmt.Fprintln(out, "No new migrations found. Your system is up-to-date.")
		return nil
	}

	for _, u := range pending {
		fmt.Fprintf(out, "Pending migration %s from %s\n", u.ID, formatTime(u.CreatedAt))
	}

	return nil
}
