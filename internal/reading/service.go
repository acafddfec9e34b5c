package reading

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// DocumentSource loads the raw text of a book on behalf of a reader.
// Implementations return ErrBookNotFound when the book is missing or not readable by userID.
type DocumentSource interface {
	FetchContent(ctx context.Context, userID UserID, bookName BookName) (Document, error)
}

// ServiceConfig describes the collaborators of the reading Service.
type ServiceConfig struct {
	Documents    DocumentSource
	Positions    *PositionStore
	Settings     *SettingsStore
	WordsPerPage int
	SplitCache   *SplitCache
	Logger       *zap.Logger
}

// Service orchestrates page navigation, rendering preferences, and search.
type Service struct {
	documents    DocumentSource
	positions    *PositionStore
	settings     *SettingsStore
	wordsPerPage int
	splitCache   *SplitCache
	logger       *zap.Logger
}

// NewService validates the configuration and constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Documents == nil {
		return nil, newServiceError(opServiceNew, "missing_documents", errMissingDocuments)
	}
	if cfg.Positions == nil {
		return nil, newServiceError(opServiceNew, "missing_positions", errMissingPositions)
	}
	if cfg.Settings == nil {
		return nil, newServiceError(opServiceNew, "missing_settings", errMissingSettings)
	}
	wordsPerPage := cfg.WordsPerPage
	if wordsPerPage <= 0 {
		wordsPerPage = DefaultWordsPerPage
	}
	return &Service{
		documents:    cfg.Documents,
		positions:    cfg.Positions,
		settings:     cfg.Settings,
		wordsPerPage: wordsPerPage,
		splitCache:   cfg.SplitCache,
		logger:       loggerOrDefault(cfg.Logger),
	}, nil
}

// WordsPerPage reports the page size shared by navigation and search.
func (s *Service) WordsPerPage() int {
	return s.wordsPerPage
}

// Start opens a book at page 1 and records the position.
func (s *Service) Start(ctx context.Context, userID UserID, bookName BookName) (PageView, error) {
	return s.navigate(ctx, opStart, userID, bookName, func(int) (int, error) {
		return 1, nil
	})
}

// Continue reopens a book at the stored page, or at page 1 for a first visit.
func (s *Service) Continue(ctx context.Context, userID UserID, bookName BookName) (PageView, error) {
	position, err := s.positions.Get(ctx, userID, bookName)
	if err != nil {
		return PageView{}, err
	}
	if position == nil {
		return s.Start(ctx, userID, bookName)
	}
	stored := position.CurrentPage
	return s.navigate(ctx, opContinue, userID, bookName, func(totalPages int) (int, error) {
		if stored > totalPages {
			s.logger.Warn("stored page beyond book end",
				zap.String(fieldUserID, userID.String()),
				zap.String(fieldBookName, bookName.String()),
				zap.Int("stored_page", stored),
				zap.Int("total_pages", totalPages))
			return totalPages, nil
		}
		if stored < 1 {
			return 1, nil
		}
		return stored, nil
	})
}

// GoTo jumps to pageNumber, which must lie in [1, totalPages].
func (s *Service) GoTo(ctx context.Context, userID UserID, bookName BookName, pageNumber int) (PageView, error) {
	return s.navigate(ctx, opGoTo, userID, bookName, func(totalPages int) (int, error) {
		if pageNumber < 1 || pageNumber > totalPages {
			return 0, fmt.Errorf("%w: page %d outside 1..%d", ErrInvalidPageNumber, pageNumber, totalPages)
		}
		return pageNumber, nil
	})
}

// Find searches the whole book for keyword. Reading state is neither read nor written.
// A blank keyword yields no results without loading the book.
func (s *Service) Find(ctx context.Context, userID UserID, bookName BookName, keyword string) (SearchResults, error) {
	if strings.TrimSpace(keyword) == "" {
		return SearchResults{Results: []SearchHit{}}, nil
	}
	pages, err := s.loadPages(ctx, opFind, userID, bookName)
	if err != nil {
		return SearchResults{}, err
	}
	return SearchResults{Results: SearchPages(pages, keyword)}, nil
}

// History returns the stored position of the reader in bookName, or nil.
func (s *Service) History(ctx context.Context, userID UserID, bookName BookName) (*ReadingPosition, error) {
	return s.positions.Get(ctx, userID, bookName)
}

// ListHistory returns all positions of the reader, most recent first.
func (s *Service) ListHistory(ctx context.Context, userID UserID) ([]ReadingPosition, error) {
	return s.positions.List(ctx, userID)
}

// GetSettings returns the stored or default rendering preference.
func (s *Service) GetSettings(ctx context.Context, userID UserID) (ReadingSettings, error) {
	return s.settings.Get(ctx, userID)
}

// SetSettings validates and stores the rendering preference.
func (s *Service) SetSettings(ctx context.Context, userID UserID, mode ReadingMode, amount int) (ReadingSettings, error) {
	if err := ValidateSettings(mode, amount); err != nil {
		return ReadingSettings{}, err
	}
	return s.settings.Set(ctx, userID, mode, amount)
}

// navigate loads the book, lets choose pick the target page, persists it, and renders it.
func (s *Service) navigate(ctx context.Context, operation string, userID UserID, bookName BookName, choose func(totalPages int) (int, error)) (PageView, error) {
	pages, err := s.loadPages(ctx, operation, userID, bookName)
	if err != nil {
		return PageView{}, err
	}
	totalPages := len(pages)

	pageNumber, err := choose(totalPages)
	if err != nil {
		return PageView{}, err
	}

	settings, err := s.settings.Get(ctx, userID)
	if err != nil {
		return PageView{}, err
	}

	if err := s.positions.Upsert(ctx, userID, bookName, pageNumber, totalPages); err != nil {
		return PageView{}, err
	}

	content := Reduce(pages[pageNumber-1], settings.ReadingMode, settings.ReadingAmount)
	return newPageView(bookName, content, pageNumber, totalPages), nil
}

func (s *Service) loadPages(ctx context.Context, operation string, userID UserID, bookName BookName) ([]string, error) {
	document, err := s.documents.FetchContent(ctx, userID, bookName)
	if err != nil {
		if errors.Is(err, ErrBookNotFound) {
			return nil, err
		}
		logServiceError(s.logger, operation, reasonFetchFailed, err,
			zap.String(fieldUserID, userID.String()),
			zap.String(fieldBookName, bookName.String()))
		return nil, newServiceError(operation, reasonFetchFailed, err)
	}

	pages := s.splitCache.Pages(bookName, document.Content, s.wordsPerPage)
	if document.DeclaredPages > 0 && document.DeclaredPages != len(pages) {
		s.logger.Debug("declared page count differs from computed split",
			zap.String(fieldBookName, bookName.String()),
			zap.Int("declared_pages", document.DeclaredPages),
			zap.Int("computed_pages", len(pages)))
	}
	return pages, nil
}
