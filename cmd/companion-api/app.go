package main

import (
	"crypto/rand"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/MarcoPoloResearchLab/companion/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/companion/backend/internal/config"
	"github.com/MarcoPoloResearchLab/companion/backend/internal/database"
	"github.com/MarcoPoloResearchLab/companion/backend/internal/library"
	"github.com/MarcoPoloResearchLab/companion/backend/internal/logging"
	"github.com/MarcoPoloResearchLab/companion/backend/internal/reading"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// application holds the services shared by every subcommand.
type application struct {
	logger      *zap.Logger
	db          *gorm.DB
	sqlDB       *sql.DB
	libraryRoot string
	store       *library.FileStore
	library     *library.Service
	reading     *reading.Service
	downloads   *auth.DownloadSigner
}

var (
	openDatabase      = database.OpenSQLite
	libraryFilesystem = func(root string) afero.Fs {
		return afero.NewBasePathFs(afero.NewOsFs(), root)
	}
)

func openApplication(appConfig config.AppConfig) (*application, error) {
	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogFormat)
	if err != nil {
		return nil, err
	}

	libraryRoot, err := filepath.Abs(appConfig.LibraryRoot)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(libraryRoot, 0o755); err != nil {
		return nil, err
	}

	db, err := openDatabase(appConfig.DatabasePath, logger)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	app, err := assembleApplication(appConfig, logger, db, libraryRoot)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	app.sqlDB = sqlDB
	return app, nil
}

func assembleApplication(appConfig config.AppConfig, logger *zap.Logger, db *gorm.DB, libraryRoot string) (*application, error) {
	store, err := library.NewFileStore(libraryFilesystem(libraryRoot), appConfig.TextCacheEntries, logger)
	if err != nil {
		return nil, err
	}

	// Offline commands run without a session secret and sign with a throwaway key.
	downloadSecret := []byte(appConfig.TAuthSigningKey)
	if len(downloadSecret) == 0 {
		downloadSecret = make([]byte, 32)
		if _, err := rand.Read(downloadSecret); err != nil {
			return nil, err
		}
	}
	signer, err := auth.NewDownloadSigner(auth.DownloadSignerConfig{
		SigningSecret: downloadSecret,
		Issuer:        downloadIssuer,
		TTL:           appConfig.DownloadURLTTL,
	})
	if err != nil {
		return nil, err
	}

	catalog, err := library.NewService(library.ServiceConfig{
		Database:       db,
		Store:          store,
		Signer:         signer,
		IDProvider:     reading.NewUUIDProvider(),
		Clock:          time.Now,
		MaxUploadBytes: appConfig.MaxUploadBytes,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}

	storeConfig := reading.StoreConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: reading.NewUUIDProvider(),
		Logger:     logger,
	}
	positions, err := reading.NewPositionStore(storeConfig)
	if err != nil {
		return nil, err
	}
	settings, err := reading.NewSettingsStore(storeConfig)
	if err != nil {
		return nil, err
	}
	readingService, err := reading.NewService(reading.ServiceConfig{
		Documents:    catalog,
		Positions:    positions,
		Settings:     settings,
		WordsPerPage: appConfig.WordsPerPage,
		SplitCache:   reading.NewSplitCache(appConfig.SplitCacheEntries),
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	return &application{
		logger:      logger,
		db:          db,
		libraryRoot: libraryRoot,
		store:       store,
		library:     catalog,
		reading:     readingService,
		downloads:   signer,
	}, nil
}

func (a *application) Close() {
	_ = a.sqlDB.Close()
	_ = a.logger.Sync()
}
