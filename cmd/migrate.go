package main

import (
	"context"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/Kyz7/hcg-auth/internal/database"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create tables and apply pending SQL migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(cmd.Context(), func(db *gorm.DB) error {
				if err := database.Migrate(cmd.Context(), db); err != nil {
					return err
				}
				cmd.Println("Migrations applied.")
				return nil
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending SQL migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(cmd.Context(), func(db *gorm.DB) error {
				states, err := database.GetAppliedMigrations(cmd.Context(), db)
				if err != nil {
					return err
				}
				for _, s := range states {
					mark := "pending"
					if s.Applied {
						mark = "applied"
					}
					cmd.Printf("%05d  %-8s %s\n", s.Version, mark, s.Source)
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent SQL migration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(cmd.Context(), func(db *gorm.DB) error {
				if err := database.RollbackMigration(cmd.Context(), db); err != nil {
					return err
				}
				cmd.Println("Rolled back one migration.")
				return nil
			})
		},
	})

	return cmd
}

func withDB(ctx context.Context, fn func(db *gorm.DB) error) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	db, err := database.Connect(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close(db) }()

	if err := database.Ping(ctx, db); err != nil {
		return err
	}
	return fn(db)
}
