package reading

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	columnUserID      = "user_id"
	columnBookName    = "book_name"
	queryUserID       = columnUserID + " = ?"
	queryUserBook     = columnUserID + " = ? AND " + columnBookName + " = ?"
	orderLastReadDesc = "last_read_at DESC"
)

// StoreConfig describes the dependencies shared by the reading stores.
type StoreConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// PositionStore persists reading positions keyed by (user, book).
// Page bounds are not checked here; the Service validates navigation.
type PositionStore struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewPositionStore constructs a PositionStore.
func NewPositionStore(cfg StoreConfig) (*PositionStore, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opPositionStoreNew, reasonMissingDatabase, errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opPositionStoreNew, reasonMissingIDProvider, errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &PositionStore{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     loggerOrDefault(cfg.Logger),
	}, nil
}

// Get returns the stored position or nil when the reader never opened the book.
func (store *PositionStore) Get(ctx context.Context, userID UserID, bookName BookName) (*ReadingPosition, error) {
	if store == nil || store.db == nil {
		return nil, newServiceError(opPositionGet, reasonMissingDatabase, errMissingDatabase)
	}

	var position ReadingPosition
	err := store.db.WithContext(ctx).
		Where(queryUserBook, userID.String(), bookName.String()).
		Take(&position).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		logServiceError(store.logger, opPositionGet, reasonQueryFailed, err,
			zap.String(fieldUserID, userID.String()),
			zap.String(fieldBookName, bookName.String()))
		return nil, newServiceError(opPositionGet, reasonQueryFailed, err)
	}
	position.ReadingProgress = ProgressPercent(position.CurrentPage, position.TotalPages)
	return &position, nil
}

// List returns every position of the reader, most recently read first.
func (store *PositionStore) List(ctx context.Context, userID UserID) ([]ReadingPosition, error) {
	if store == nil || store.db == nil {
		return nil, newServiceError(opPositionList, reasonMissingDatabase, errMissingDatabase)
	}

	var positions []ReadingPosition
	if err := store.db.WithContext(ctx).
		Where(queryUserID, userID.String()).
		Order(orderLastReadDesc).
		Find(&positions).Error; err != nil {
		logServiceError(store.logger, opPositionList, reasonQueryFailed, err, zap.String(fieldUserID, userID.String()))
		return nil, newServiceError(opPositionList, reasonQueryFailed, err)
	}
	for index := range positions {
		positions[index].ReadingProgress = ProgressPercent(positions[index].CurrentPage, positions[index].TotalPages)
	}
	return positions, nil
}

// Upsert overwrites the page pointer of (user, book). Concurrent writers race and the last one wins.
func (store *PositionStore) Upsert(ctx context.Context, userID UserID, bookName BookName, currentPage, totalPages int) error {
	if store == nil || store.db == nil {
		return newServiceError(opPositionUpsert, reasonMissingDatabase, errMissingDatabase)
	}

	historyID, err := store.idProvider.NewID()
	if err != nil {
		logServiceError(store.logger, opPositionUpsert, reasonIDFailed, err, zap.String(fieldUserID, userID.String()))
		return newServiceError(opPositionUpsert, reasonIDFailed, err)
	}

	now := store.clock().UTC()
	record := ReadingPosition{
		HistoryID:   historyID,
		UserID:      userID.String(),
		BookName:    bookName.String(),
		CurrentPage: currentPage,
		TotalPages:  totalPages,
		LastReadAt:  now,
		CreatedAt:   now,
	}
	err = store.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: columnUserID}, {Name: columnBookName}},
			DoUpdates: clause.AssignmentColumns([]string{"current_page", "total_pages", "last_read_at"}),
		}).
		Create(&record).Error
	if err != nil {
		logServiceError(store.logger, opPositionUpsert, reasonUpsertFailed, err,
			zap.String(fieldUserID, userID.String()),
			zap.String(fieldBookName, bookName.String()))
		return newServiceError(opPositionUpsert, reasonUpsertFailed, err)
	}
	return nil
}
