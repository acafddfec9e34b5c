package database

import (
	"errors"
	"fmt"
	"time"

	"github.com/MarcoPoloResearchLab/companion/backend/internal/reading"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationStripProviderPrefix    = "2026-10-01_strip_provider_prefix"
	migrationNormalizeReadingAmount = "2026-10-01_normalize_reading_amount"
	migrationClampReadingPages      = "2026-10-01_clamp_reading_pages"

	providerPrefix = "google:"
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
		{name: migrationStripProviderPrefix, apply: stripProviderPrefix},
		{name: migrationNormalizeReadingAmount, apply: normalizeReadingAmount},
		{name: migrationClampReadingPages, apply: clampReadingPages},
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
		if err := db.Transaction(func(tx *gorm.DB) error {
			if err := migration.apply(tx); err != nil {
				return err
			}
			appliedAt := time.Now().UTC().Unix()
			return tx.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error
		}); err != nil {
			return fmt.Errorf("migration %s: %w", migration.name, err)
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// stripProviderPrefix rewrites reader ids stored before sessions were mapped through reader identities.
func stripProviderPrefix(db *gorm.DB) error {
	start := len(providerPrefix) + 1
	statements := []string{
		"UPDATE reading_history SET user_id = substr(user_id, %d) WHERE user_id LIKE '%s%%'",
		"UPDATE reading_settings SET user_id = substr(user_id, %d) WHERE user_id LIKE '%s%%'",
		"UPDATE books SET uploaded_by = substr(uploaded_by, %d) WHERE uploaded_by LIKE '%s%%'",
	}
	for _, statement := range statements {
		if err := db.Exec(fmt.Sprintf(statement, start, providerPrefix)).Error; err != nil {
			return err
		}
	}
	return nil
}

func normalizeReadingAmount(db *gorm.DB) error {
	return db.Model(&reading.ReadingSettings{}).
		Where("reading_amount < ?", 1).
		Update("reading_amount", reading.DefaultReadingAmount).Error
}

func clampReadingPages(db *gorm.DB) error {
	return db.Model(&reading.ReadingPosition{}).
		Where("current_page < ?", 1).
		Update("current_page", 1).Error
}
