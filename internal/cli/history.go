package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "history [limit]",
	Short: "Show applied migrations, newest first",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	limit := 0

	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			return fmt.Errorf("limit must be a non-negative integer, got %q", args[0])
		}

		limit = n
	}

	eng, err := openEngine(cmd, AppConfig)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	entries, err := eng.History(commandContext(cmd), limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if len(entries) == 0 {
		fmt.Fprintln(out, "Migration history is empty.")
		return nil
	}

	for _, e := range entries {
		fmt.Fprintf(out, "Migration %s from %s\n", e.Name, formatTime(e.AppliedAt()))
	}

	return nil
}
