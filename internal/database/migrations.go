package database

import (
	"errors"
	"time"

	"github.com/aradhanasaha/coffee-sub000/internal/social"
	"github.com/aradhanasaha/coffee-sub000/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	migrationTrimLocationCities  = "2026-09-14_trim_location_cities"
	migrationBackfillAuthorUsers = "2026-09-21_backfill_author_profiles"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationTrimLocationCities, apply: trimLocationCities},
		{name: migrationBackfillAuthorUsers, apply: backfillAuthorProfiles},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

func trimLocationCities(db *gorm.DB) error {
	return db.Model(&social.Location{}).
		Where("city <> TRIM(city)").
		Update("city", gorm.Expr("TRIM(city)")).Error
}

// Authors imported before profiles existed would otherwise never be nudged.
func backfillAuthorProfiles(db *gorm.DB) error {
	var authorIDs []string
	if err := db.Model(&social.CoffeeLog{}).
		Distinct("author_id").
		Pluck("author_id", &authorIDs).Error; err != nil {
		return err
	}
	if len(authorIDs) == 0 {
		return nil
	}
	profiles := make([]users.Profile, 0, len(authorIDs))
	for _, authorID := range authorIDs {
		profiles = append(profiles, users.Profile{UserID: authorID})
	}
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&profiles).Error
}
