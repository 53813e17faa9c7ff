// Command financectl runs maintenance tasks: secret key generation and
// database migrations.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "financectl",
		Short:         "Maintenance tool for the finance API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	keygenCmd := &cobra.Command{
		Use:   "keygen",
		Short: "Print a new random SECRET_KEY",
		Args:  cobra.NoArgs,
		RunE:  runKeygen,
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
	}

	migrateUpCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE:  runMigrateUp,
	}

	migrateDownCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE:  runMigrateDown,
	}
	migrateDownCmd.Flags().BoolP("yes", "y", false, "Skip confirmation prompt")

	migrateStatusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show which migrations are applied",
		Args:  cobra.NoArgs,
		RunE:  runMigrateStatus,
	}

	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)
	rootCmd.AddCommand(keygenCmd, migrateCmd)

	if err := rootCmd.Execute(); err != nil {
		printError(err.Error())
		os.Exit(1)
	}
}
