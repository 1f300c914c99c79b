package config

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var DB *gorm.DB

// dialector picks the gorm driver for the configured database
func dialector(driver, url string) (gorm.Dialector, error) {
	switch driver {
	case "postgres":
		return postgres.Open(url), nil
	case "mysql":
		return mysql.Open(url), nil
	case "sqlite":
		return sqlite.Open(url), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// ConnectDatabase establishes a connection to the configured database
func ConnectDatabase(cfg *Config, logger *zap.Logger) error {
	d, err := dialector(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}

	db, err := gorm.Open(d, &gorm.Config{TranslateError: true})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	DB = db

	logger.Info("Database connection established", zap.String("driver", cfg.DatabaseDriver))
	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}

// SetDB sets the database instance (primarily for testing)
func SetDB(db *gorm.DB) {
	DB = db
}
