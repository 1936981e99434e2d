package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aqasim81/sqlmigrate/internal/migration"
)

var createCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "create <name>",
	Short: "Create an empty migration",
	Long: `Create a migration directory named m<YYYYMMDD_HHMMSS>_<name> holding empty
up.sql and down.sql scripts. The name may contain letters, digits and
underscores. No database connection is needed.`,
	Args: cobra.ExactArgs(1),
	RunE: runCreate,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	rootCmd.AddCommand(createCmd)
}

func runCreate(cmd *cobra.Command, args []string) error {
	repo := migration.NewRepository(AppConfig.Migration.Directory)

	u, err := repo.Create(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	success(out, fmt.Sprintf("Migration %s was created successfully.", u.ID))
	fmt.Fprintf(out, "  %s\n  %s\n", u.UpPath, u.DownPath)

	return nil
}
