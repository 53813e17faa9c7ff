package main

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/huh"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/my-finance/internal/config"
	"github.com/redmonkez12/my-finance/internal/database"
)

func openDatabase(ctx context.Context) (*bun.DB, config.DatabaseConfig, error) {
	cfg, err := config.LoadDatabase()
	if err != nil {
		return nil, cfg, fmt.Errorf("load config: %w", err)
	}

	db, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, cfg, err
	}
	return db, cfg, nil
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	db, cfg, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(ctx, db, cfg.Driver); err != nil {
		return err
	}

	printSuccess("Database is up to date")
	return nil
}

func runMigrateDown(cmd *cobra.Command, args []string) error {
	yes, _ := cmd.Flags().GetBool("yes")
	ctx := cmd.Context()

	if !yes {
		confirmed := false
		err := huh.NewConfirm().
			Title("Roll back the most recent migration?").
			Description("Tables created by it are dropped together with their data.").
			Affirmative("Roll back").
			Negative("Cancel").
			Value(&confirmed).
			WithTheme(huh.ThemeCatppuccin()).
			Run()
		if err != nil {
			return fmt.Errorf("prompt cancelled: %w", err)
		}
		if !confirmed {
			fmt.Fprintln(cmd.OutOrStdout(), subtleStyle.Render("Aborted."))
			return nil
		}
	}

	db, cfg, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.MigrateDown(ctx, db, cfg.Driver); err != nil {
		return err
	}

	printSuccess("Rolled back one migration")
	return nil
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	db, cfg, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	status, err := database.MigrationStatus(ctx, db, cfg.Driver)
	if err != nil {
		return err
	}

	printStatus(cmd.OutOrStdout(), cfg.Driver, status)
	return nil
}

func printStatus(w io.Writer, driver string, status []*goose.MigrationStatus) {
	fmt.Fprintln(w, titleStyle.Render("Migrations ("+driver+")"))

	for _, s := range status {
		state := pendingStyle.Render("pending")
		applied := ""
		if s.State == goose.StateApplied {
			state = successStyle.Render("applied")
			applied = subtleStyle.Render(s.AppliedAt.Local().Format("2006-01-02 15:04:05"))
		}
		fmt.Fprintf(w, "  %05d  %-8s  %-40s %s\n", s.Source.Version, state, s.Source.Path, applied)
	}
}
