package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/you/mcmarket/domain"
	"github.com/you/mcmarket/internal/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open creates a new database connection with production-ready settings
func Open(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), GormConfig(cfg.DBLogLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.DBConnLifetime)

	return db, nil
}

// GormConfig returns the gorm settings shared by the server and the migrate command.
// Driver errors are translated so unique violations surface as gorm.ErrDuplicatedKey.
func GormConfig(level string) *gorm.Config {
	return &gorm.Config{
		Logger: logger.New(
			slog.NewLogLogger(slog.Default().Handler(), slog.LevelInfo),
			logger.Config{
				SlowThreshold:             200 * time.Millisecond,
				LogLevel:                  logLevel(level),
				IgnoreRecordNotFoundError: true,
			},
		),
		TranslateError: true,
	}
}

func logLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// Models lists every table owned by the service
func Models() []interface{} {
	return []interface{}{
		&domain.User{},
		&domain.RefreshToken{},
		&domain.PasswordResetToken{},
		&domain.EmailVerificationToken{},
		&domain.Listing{},
		&domain.ListingUnlock{},
		&domain.ListingDocument{},
		&domain.Offer{},
		&domain.Transaction{},
		&domain.Payment{},
		&domain.Dispute{},
		&domain.CreditTransaction{},
		&domain.Subscription{},
		&domain.Notification{},
		&domain.PlatformSetting{},
		&domain.AdminActionLog{},
		&domain.Consultation{},
	}
}

// AutoMigrate performs database migration for all required tables
// including the Casbin policy table used for RBAC
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate tables: %w", err)
	}

	// The adapter creates casbin_rule on construction
	if _, err := gormadapter.NewAdapterByDB(db); err != nil {
		return fmt.Errorf("failed to initialize Casbin GORM adapter: %w", err)
	}

	return nil
}

// Ping checks that the database answers within ctx
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
