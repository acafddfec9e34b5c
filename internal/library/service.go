package library

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/MarcoPoloResearchLab/companion/backend/internal/reading"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// URLSigner issues tokens that authorize downloading one blob path.
type URLSigner interface {
	SignPath(blobPath string) (token string, expiresAt time.Time, err error)
}

// ServiceConfig describes the dependencies of the catalog Service.
type ServiceConfig struct {
	Database       *gorm.DB
	Store          *FileStore
	Signer         URLSigner
	IDProvider     reading.IDProvider
	Clock          func() time.Time
	MaxUploadBytes int64
	DownloadPrefix string
	Logger         *zap.Logger
}

// Service manages the book catalog and serves book text to the reading engine.
type Service struct {
	db             *gorm.DB
	store          *FileStore
	signer         URLSigner
	idProvider     reading.IDProvider
	clock          func() time.Time
	maxUploadBytes int64
	downloadPrefix string
	logger         *zap.Logger
}

// NewService validates the configuration and constructs a catalog Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.Store == nil {
		return nil, newServiceError(opServiceNew, "missing_store", errMissingStore)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	if cfg.Signer == nil {
		return nil, newServiceError(opServiceNew, "missing_signer", errMissingSigner)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}
	prefix := cfg.DownloadPrefix
	if prefix == "" {
		prefix = "/files/"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:             cfg.Database,
		store:          cfg.Store,
		signer:         cfg.Signer,
		idProvider:     cfg.IDProvider,
		clock:          clock,
		maxUploadBytes: maxUpload,
		downloadPrefix: prefix,
		logger:         logger,
	}, nil
}

// MaxUploadBytes reports the configured upload limit.
func (s *Service) MaxUploadBytes() int64 {
	return s.maxUploadBytes
}

// Upload validates, normalizes, and stores a book, then registers it in the catalog.
// The blob is removed again when the catalog insert fails.
func (s *Service) Upload(ctx context.Context, owner reading.UserID, request UploadRequest) (Book, error) {
	title := strings.TrimSpace(request.Title)
	if title == "" {
		return Book{}, ErrMissingTitle
	}
	if _, err := reading.NewBookName(title); err != nil {
		return Book{}, err
	}
	contentType, err := ResolveContentType(request.ContentType, request.FileName)
	if err != nil {
		return Book{}, err
	}
	if int64(len(request.Data)) > s.maxUploadBytes {
		return Book{}, fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, len(request.Data), s.maxUploadBytes)
	}
	if len(request.Data) == 0 {
		return Book{}, ErrEmptyFile
	}

	text, err := NormalizeText(contentType, request.Data)
	if err != nil {
		if errors.Is(err, ErrUnsupportedFileType) {
			return Book{}, err
		}
		return Book{}, newServiceError(opUpload, reasonNormalize, err)
	}

	exists, err := s.titleExists(ctx, title)
	if err != nil {
		return Book{}, err
	}
	if exists {
		return Book{}, fmt.Errorf("%w: %q", ErrDuplicateBook, title)
	}

	bookID, err := s.idProvider.NewID()
	if err != nil {
		logError(s.logger, opUpload, reasonIDFailed, err)
		return Book{}, newServiceError(opUpload, reasonIDFailed, err)
	}

	blobPath := publicPrefix + "/" + bookID + storedExtension
	if !request.IsPublic {
		blobPath = privatePrefix + "/" + owner.String() + "/" + bookID + storedExtension
	}
	if err := s.store.Put(blobPath, []byte(text)); err != nil {
		logError(s.logger, opUpload, reasonIO, err, zap.String("path", blobPath))
		return Book{}, err
	}

	book := Book{
		BookID:      bookID,
		BookName:    title,
		FilePath:    blobPath,
		TotalPages:  estimatePages(utf8.RuneCountInString(text)),
		IsPublic:    request.IsPublic,
		Author:      strings.TrimSpace(request.Author),
		Description: strings.TrimSpace(request.Description),
		FileSize:    int64(len(request.Data)),
		FileType:    contentType,
		UploadedBy:  owner.String(),
		CreatedAt:   s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&book).Error; err != nil {
		logError(s.logger, opUpload, reasonInsert, err, zap.String("book_name", title))
		if cleanupErr := s.store.Delete(blobPath); cleanupErr != nil {
			logError(s.logger, opUpload, reasonIO, cleanupErr, zap.String("path", blobPath))
		}
		return Book{}, newServiceError(opUpload, reasonInsert, err)
	}

	s.logger.Info("book uploaded",
		zap.String("book_name", book.BookName),
		zap.String("uploaded_by", book.UploadedBy),
		zap.Bool("is_public", book.IsPublic),
		zap.Int("declared_pages", book.TotalPages))
	return book, nil
}

// ListPublic returns public books, newest first.
func (s *Service) ListPublic(ctx context.Context, limit, offset int) ([]Book, error) {
	return s.list(ctx, s.db.WithContext(ctx).Where("is_public = ?", true), limit, offset)
}

// ListForUser returns the private books uploaded by userID, newest first.
func (s *Service) ListForUser(ctx context.Context, userID reading.UserID, limit, offset int) ([]Book, error) {
	query := s.db.WithContext(ctx).Where("is_public = ? AND uploaded_by = ?", false, userID.String())
	return s.list(ctx, query, limit, offset)
}

// SearchCatalog matches term against title, author, and description without regard to case.
// At most MaxListLimit books are returned, newest first.
func (s *Service) SearchCatalog(ctx context.Context, userID reading.UserID, scope Scope, term string) ([]Book, error) {
	query := s.db.WithContext(ctx)
	switch scope {
	case ScopeMine:
		query = query.Where("is_public = ? AND uploaded_by = ?", false, userID.String())
	default:
		query = query.Where("is_public = ?", true)
	}
	if trimmed := strings.TrimSpace(term); trimmed != "" {
		pattern := "%" + escapeLike(strings.ToLower(trimmed)) + "%"
		query = query.Where(
			"LOWER(book_name) LIKE ? ESCAPE '\\' OR LOWER(author) LIKE ? ESCAPE '\\' OR LOWER(description) LIKE ? ESCAPE '\\'",
			pattern, pattern, pattern)
	}

	var books []Book
	if err := query.Order("created_at DESC").Limit(MaxListLimit).Find(&books).Error; err != nil {
		logError(s.logger, opSearch, reasonQuery, err)
		return nil, newServiceError(opSearch, reasonQuery, err)
	}
	return books, nil
}

// Lookup returns the catalog entry of bookName when userID may read it.
// Private books of other readers are reported as missing.
func (s *Service) Lookup(ctx context.Context, userID reading.UserID, bookName reading.BookName) (Book, error) {
	var book Book
	err := s.db.WithContext(ctx).Where("book_name = ?", bookName.String()).Take(&book).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Book{}, fmt.Errorf("%w: %s", ErrBookNotFound, bookName)
	}
	if err != nil {
		logError(s.logger, opLookup, reasonQuery, err, zap.String("book_name", bookName.String()))
		return Book{}, newServiceError(opLookup, reasonQuery, err)
	}
	if !book.IsPublic && book.UploadedBy != userID.String() {
		return Book{}, fmt.Errorf("%w: %s", ErrBookNotFound, bookName)
	}
	return book, nil
}

// FetchContent loads the normalized text of a readable book.
func (s *Service) FetchContent(ctx context.Context, userID reading.UserID, bookName reading.BookName) (reading.Document, error) {
	book, err := s.Lookup(ctx, userID, bookName)
	if err != nil {
		return reading.Document{}, err
	}
	text, err := s.store.Text(book.FilePath)
	if errors.Is(err, ErrBlobNotFound) {
		s.logger.Warn("catalog entry without blob",
			zap.String("book_name", book.BookName),
			zap.String("path", book.FilePath))
		return reading.Document{}, fmt.Errorf("%w: %s", ErrBookNotFound, bookName)
	}
	if err != nil {
		logError(s.logger, opFetch, reasonIO, err, zap.String("path", book.FilePath))
		return reading.Document{}, err
	}
	return reading.Document{Name: bookName, Content: text, DeclaredPages: book.TotalPages}, nil
}

// SignedURL issues a time-limited download link for a readable book.
func (s *Service) SignedURL(ctx context.Context, userID reading.UserID, bookName reading.BookName) (SignedURL, error) {
	book, err := s.Lookup(ctx, userID, bookName)
	if err != nil {
		return SignedURL{}, err
	}
	token, expiresAt, err := s.signer.SignPath(book.FilePath)
	if err != nil {
		logError(s.logger, opSign, reasonSign, err, zap.String("path", book.FilePath))
		return SignedURL{}, newServiceError(opSign, reasonSign, err)
	}
	link := s.downloadPrefix + book.FilePath + "?" + url.Values{"token": {token}}.Encode()
	return SignedURL{URL: link, ExpiresAt: expiresAt}, nil
}

// OpenBlob returns the stored bytes of blobPath for an already authorized download.
func (s *Service) OpenBlob(blobPath string) ([]byte, error) {
	return s.store.Bytes(blobPath)
}

func (s *Service) list(ctx context.Context, query *gorm.DB, limit, offset int) ([]Book, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	var books []Book
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&books).Error; err != nil {
		logError(s.logger, opList, reasonQuery, err)
		return nil, newServiceError(opList, reasonQuery, err)
	}
	return books, nil
}

func (s *Service) titleExists(ctx context.Context, title string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&Book{}).Where("book_name = ?", title).Count(&count).Error; err != nil {
		logError(s.logger, opUpload, reasonQuery, err)
		return false, newServiceError(opUpload, reasonQuery, err)
	}
	return count > 0, nil
}

func escapeLike(term string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(term)
}
