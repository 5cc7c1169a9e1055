package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tracker/internal/migrate"
	"tracker/internal/schema"
	"tracker/internal/storage/sqlite"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE:  runMigrateUp,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		RunE:  runMigrateStatus,
	})
	return cmd
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store, err := openStore(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	applied, err := migrate.New(logger).Applied(cmd.Context(), store)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d migrations applied\n", len(applied))
	return nil
}

func runMigrateStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	// Open without applying anything so pending entries stay pending.
	store, err := openStore(cmd.Context(), cfg, logger, sqlite.WithMigrations(schema.FS, nil))
	if err != nil {
		return err
	}
	defer store.Close()

	applied, err := migrate.New(logger).Applied(cmd.Context(), store)
	if err != nil {
		return err
	}
	done := make(map[string]bool, len(applied))
	for _, label := range applied {
		done[label] = true
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, m := range schema.Migrations {
		state := "pending"
		if done[m.Label()] {
			state = "applied"
		}
		fmt.Fprintf(w, "%s\t%s\n", m.Label(), state)
	}
	return w.Flush()
}
