package reading

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingsStore persists one rendering preference row per reader.
type SettingsStore struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewSettingsStore constructs a SettingsStore.
func NewSettingsStore(cfg StoreConfig) (*SettingsStore, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opSettingsStoreNew, reasonMissingDatabase, errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opSettingsStoreNew, reasonMissingIDProvider, errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &SettingsStore{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     loggerOrDefault(cfg.Logger),
	}, nil
}

// Get returns the stored settings, or the defaults without creating a row.
func (store *SettingsStore) Get(ctx context.Context, userID UserID) (ReadingSettings, error) {
	if store == nil || store.db == nil {
		return ReadingSettings{}, newServiceError(opSettingsGet, reasonMissingDatabase, errMissingDatabase)
	}

	var settings ReadingSettings
	err := store.db.WithContext(ctx).Where(queryUserID, userID.String()).Take(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return defaultSettings(userID, store.clock().UTC()), nil
	}
	if err != nil {
		logServiceError(store.logger, opSettingsGet, reasonQueryFailed, err, zap.String(fieldUserID, userID.String()))
		return ReadingSettings{}, newServiceError(opSettingsGet, reasonQueryFailed, err)
	}
	return settings, nil
}

// Set upserts the reader's settings and returns the persisted row.
// Callers validate mode and amount with ValidateSettings first.
func (store *SettingsStore) Set(ctx context.Context, userID UserID, mode ReadingMode, amount int) (ReadingSettings, error) {
	if store == nil || store.db == nil {
		return ReadingSettings{}, newServiceError(opSettingsSet, reasonMissingDatabase, errMissingDatabase)
	}

	settingsID, err := store.idProvider.NewID()
	if err != nil {
		logServiceError(store.logger, opSettingsSet, reasonIDFailed, err, zap.String(fieldUserID, userID.String()))
		return ReadingSettings{}, newServiceError(opSettingsSet, reasonIDFailed, err)
	}

	now := store.clock().UTC()
	record := ReadingSettings{
		SettingsID:    settingsID,
		UserID:        userID.String(),
		ReadingMode:   mode,
		ReadingAmount: amount,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	var stored ReadingSettings
	err = store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		if err := transaction.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: columnUserID}},
			DoUpdates: clause.AssignmentColumns([]string{"reading_mode", "reading_amount", "updated_at"}),
		}).Create(&record).Error; err != nil {
			return err
		}
		return transaction.Where(queryUserID, userID.String()).Take(&stored).Error
	})
	if err != nil {
		logServiceError(store.logger, opSettingsSet, reasonUpsertFailed, err, zap.String(fieldUserID, userID.String()))
		return ReadingSettings{}, newServiceError(opSettingsSet, reasonUpsertFailed, err)
	}
	return stored, nil
}
