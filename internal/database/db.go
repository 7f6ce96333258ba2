package database

import (
	"context"
	"time"

	"github.com/samber/oops"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Kyz7/hcg-auth/internal/config"
	"github.com/Kyz7/hcg-auth/internal/models"
)

// Connect opens the PostgreSQL pool shared by every request.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("host", cfg.DBHost).
			With("database", cfg.DBName).
			Wrap(err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").Wrap(err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

// Ping checks the pool can reach the server.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return oops.Code("DB_PING_FAILED").Wrap(err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return oops.Code("DB_PING_FAILED").Wrap(err)
	}
	return nil
}

// Close releases the pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Migrate creates the tables from the models and then applies the SQL
// migrations for things AutoMigrate cannot express (partial indexes).
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(
		&models.User{},
		&models.ResetToken{},
	); err != nil {
		return oops.Code("MIGRATION_FAILED").With("stage", "automigrate").Wrap(err)
	}

	if _, err := RunMigrations(ctx, db); err != nil {
		return err
	}
	return nil
}
