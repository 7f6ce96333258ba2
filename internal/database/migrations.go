package database

import (
	"context"
	"embed"
	"io/fs"

	"github.com/pressly/goose/v3"
	"github.com/samber/oops"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// MigrationState is one row of `migrate status` output.
type MigrationState struct {
	Version int64
	Source  string
	Applied bool
}

func newProvider(db *gorm.DB) (*goose.Provider, error) {
	var dialect goose.Dialect
	switch name := db.Dialector.Name(); name {
	case "postgres":
		dialect = goose.DialectPostgres
	case "sqlite":
		dialect = goose.DialectSQLite3
	default:
		return nil, oops.Code("MIGRATION_FAILED").Errorf("unsupported dialect %q", name)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, oops.Code("MIGRATION_FAILED").Wrap(err)
	}

	fsys, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		return nil, oops.Code("MIGRATION_FAILED").Wrap(err)
	}

	provider, err := goose.NewProvider(dialect, sqlDB, fsys)
	if err != nil {
		return nil, oops.Code("MIGRATION_FAILED").With("stage", "provider").Wrap(err)
	}
	return provider, nil
}

// RunMigrations applies every pending SQL migration and returns how many ran.
func RunMigrations(ctx context.Context, db *gorm.DB) (int, error) {
	provider, err := newProvider(db)
	if err != nil {
		return 0, err
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return 0, oops.Code("MIGRATION_FAILED").With("stage", "up").Wrap(err)
	}
	return len(results), nil
}

// RollbackMigration undoes the most recent SQL migration.
func RollbackMigration(ctx context.Context, db *gorm.DB) error {
	provider, err := newProvider(db)
	if err != nil {
		return err
	}
	if _, err := provider.Down(ctx); err != nil {
		return oops.Code("MIGRATION_FAILED").With("stage", "down").Wrap(err)
	}
	return nil
}

func GetAppliedMigrations(ctx context.Context, db *gorm.DB) ([]MigrationState, error) {
	provider, err := newProvider(db)
	if err != nil {
		return nil, err
	}

	statuses, err := provider.Status(ctx)
	if err != nil {
		return nil, oops.Code("MIGRATION_FAILED").With("stage", "status").Wrap(err)
	}

	out := make([]MigrationState, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, MigrationState{
			Version: s.Source.Version,
			Source:  s.Source.Path,
			Applied: s.State == goose.StateApplied,
		})
	}
	return out, nil
}
