package database

import (
	"fmt"

	"github.com/aradhanasaha/coffee-sub000/internal/notifications"
	"github.com/aradhanasaha/coffee-sub000/internal/push"
	"github.com/aradhanasaha/coffee-sub000/internal/social"
	"github.com/aradhanasaha/coffee-sub000/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	driverSQLite   = "sqlite"
	driverPostgres = "postgres"
)

// Options selects the database backend.
type Options struct {
	Driver string
	Path   string
	DSN    string
}

// Open establishes a connection for the configured driver and performs schema migrations.
func Open(options Options, logger *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	var target string
	switch options.Driver {
	case "", driverSQLite:
		if options.Path == "" {
			return nil, fmt.Errorf("database path is required")
		}
		dialector = sqlite.Open(options.Path)
		target = options.Path
	case driverPostgres:
		if options.DSN == "" {
			return nil, fmt.Errorf("database dsn is required")
		}
		dialector = postgres.Open(options.DSN)
		target = "postgres"
	default:
		return nil, fmt.Errorf("unsupported database driver %q", options.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if options.Driver != driverPostgres {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized",
			zap.String("driver", dialector.Name()),
			zap.String("target", target))
	}

	return db, nil
}

// OpenSQLite is shorthand for Open with the sqlite driver.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	return Open(Options{Driver: driverSQLite, Path: path}, logger)
}

// Migrate creates every table and applies pending named migrations.
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	models := []interface{}{
		&users.Profile{},
		&notifications.Notification{},
		&notifications.OutboxEvent{},
		&push.Subscription{},
		&migrationRecord{},
	}
	models = append(models, social.Models()...)
	if err := db.AutoMigrate(models...); err != nil {
		return err
	}
	return applyMigrations(db, logger)
}
