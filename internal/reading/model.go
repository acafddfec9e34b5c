package reading

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ReadingMode selects how much of a page is rendered per navigation.
type ReadingMode string

const (
	// ModeFullPage renders the whole page.
	ModeFullPage ReadingMode = "fullpage"
	// ModeParagraphs renders the first N paragraphs of a page.
	ModeParagraphs ReadingMode = "paragraphs"
	// ModeSentences renders the first N sentences of a page.
	ModeSentences ReadingMode = "sentences"
)

const (
	// DefaultWordsPerPage is the page size shared by navigation and search.
	DefaultWordsPerPage = 500
	// DefaultReadingMode applies when a user never stored settings.
	DefaultReadingMode = ModeParagraphs
	// DefaultReadingAmount applies when a user never stored settings.
	DefaultReadingAmount = 3

	maxParagraphAmount  = 10
	maxSentenceAmount   = 20
	maxIdentifierLength = 190
)

// ParseReadingMode validates a raw mode string.
func ParseReadingMode(rawInput string) (ReadingMode, error) {
	switch mode := ReadingMode(strings.ToLower(strings.TrimSpace(rawInput))); mode {
	case ModeFullPage, ModeParagraphs, ModeSentences:
		return mode, nil
	default:
		return "", fmt.Errorf("%w: unknown reading mode %q", ErrInvalidSettings, rawInput)
	}
}

// ValidateSettings enforces the amount bounds offered by the reader.
func ValidateSettings(mode ReadingMode, amount int) error {
	if amount < 1 {
		return fmt.Errorf("%w: reading amount must be positive, got %d", ErrInvalidSettings, amount)
	}
	switch mode {
	case ModeFullPage:
		return nil
	case ModeParagraphs:
		if amount > maxParagraphAmount {
			return fmt.Errorf("%w: at most %d paragraphs, got %d", ErrInvalidSettings, maxParagraphAmount, amount)
		}
		return nil
	case ModeSentences:
		if amount > maxSentenceAmount {
			return fmt.Errorf("%w: at most %d sentences, got %d", ErrInvalidSettings, maxSentenceAmount, amount)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown reading mode %q", ErrInvalidSettings, mode)
	}
}

// UserID represents a validated reader identifier.
type UserID string

// NewUserID validates raw input and returns a UserID.
func NewUserID(rawInput string) (UserID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidUserID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidUserID, maxIdentifierLength)
	}
	return UserID(trimmed), nil
}

// String returns the underlying string identifier.
func (id UserID) String() string {
	return string(id)
}

// BookName identifies a book within the catalog.
type BookName string

// NewBookName validates raw input and returns a BookName.
func NewBookName(rawInput string) (BookName, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidBookName)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidBookName, maxIdentifierLength)
	}
	return BookName(trimmed), nil
}

// String returns the underlying book name.
func (name BookName) String() string {
	return string(name)
}

// ReadingPosition is the persisted page pointer of one reader in one book.
type ReadingPosition struct {
	HistoryID   string    `gorm:"column:history_id;primaryKey;size:36;not null"`
	UserID      string    `gorm:"column:user_id;size:190;not null;uniqueIndex:idx_reading_history_user_book,priority:1;index:idx_reading_history_user_read,priority:1"`
	BookName    string    `gorm:"column:book_name;size:190;not null;uniqueIndex:idx_reading_history_user_book,priority:2"`
	CurrentPage int       `gorm:"column:current_page;not null;default:1"`
	TotalPages  int       `gorm:"column:total_pages;not null;default:0"`
	LastReadAt  time.Time `gorm:"column:last_read_at;not null;index:idx_reading_history_user_read,priority:2"`
	CreatedAt   time.Time `gorm:"column:created_at;not null"`

	// ReadingProgress is derived on read and never stored.
	ReadingProgress int `gorm:"-"`
}

// TableName provides the explicit table binding for GORM.
func (ReadingPosition) TableName() string {
	return "reading_history"
}

// ReadingSettings stores the rendering preference of one reader.
type ReadingSettings struct {
	SettingsID    string      `gorm:"column:settings_id;primaryKey;size:36;not null"`
	UserID        string      `gorm:"column:user_id;size:190;not null;uniqueIndex"`
	ReadingMode   ReadingMode `gorm:"column:reading_mode;size:16;not null"`
	ReadingAmount int         `gorm:"column:reading_amount;not null"`
	CreatedAt     time.Time   `gorm:"column:created_at;not null"`
	UpdatedAt     time.Time   `gorm:"column:updated_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (ReadingSettings) TableName() string {
	return "reading_settings"
}

// PageView is the content envelope returned by navigation.
type PageView struct {
	BookName    BookName
	Content     string
	CurrentPage int
	TotalPages  int
	HasNext     bool
	HasPrevious bool
}

// SearchHit is one keyword occurrence inside a page.
type SearchHit struct {
	Page     int
	Context  string
	Position int
}

// SearchResults wraps the hits of a Find operation.
type SearchResults struct {
	Results []SearchHit
}

// Document is the raw text of a book as served by a DocumentSource.
type Document struct {
	Name          BookName
	Content       string
	DeclaredPages int
}

func newPageView(bookName BookName, content string, currentPage, totalPages int) PageView {
	return PageView{
		BookName:    bookName,
		Content:     content,
		CurrentPage: currentPage,
		TotalPages:  totalPages,
		HasNext:     currentPage < totalPages,
		HasPrevious: currentPage > 1,
	}
}

// ProgressPercent is the rounded share of the book read at currentPage.
func ProgressPercent(currentPage, totalPages int) int {
	if totalPages <= 0 {
		return 0
	}
	return int(math.Round(float64(currentPage) / float64(totalPages) * 100))
}

func defaultSettings(userID UserID, now time.Time) ReadingSettings {
	return ReadingSettings{
		SettingsID:    "",
		UserID:        userID.String(),
		ReadingMode:   DefaultReadingMode,
		ReadingAmount: DefaultReadingAmount,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// IsNotFound reports whether err means the requested book is unavailable.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrBookNotFound)
}
