package library

import (
	"time"
)

const (
	// ContentTypePlain identifies plain text uploads.
	ContentTypePlain = "text/plain"
	// ContentTypeMarkdown identifies markdown uploads.
	ContentTypeMarkdown = "text/markdown"
	// ContentTypeHTML identifies HTML uploads.
	ContentTypeHTML = "text/html"

	// DefaultMaxUploadBytes bounds a single upload.
	DefaultMaxUploadBytes int64 = 10 * 1024 * 1024
	// DefaultListLimit applies when a listing omits its limit.
	DefaultListLimit = 50
	// MaxListLimit caps the page size of listings and catalog searches.
	MaxListLimit = DefaultListLimit * 4

	publicPrefix    = "public"
	privatePrefix   = "private"
	storedExtension = ".txt"

	estimatedCharsPerWord = 5
	estimatedWordsPerPage = 500
)

// Book is one catalog entry. FilePath addresses the normalized text in the FileStore.
type Book struct {
	BookID      string    `gorm:"column:book_id;primaryKey;size:36;not null" json:"book_id"`
	BookName    string    `gorm:"column:book_name;size:190;not null;uniqueIndex" json:"book_name"`
	FilePath    string    `gorm:"column:file_path;size:512;not null" json:"file_path"`
	TotalPages  int       `gorm:"column:total_pages;not null;default:1" json:"total_pages"`
	IsPublic    bool      `gorm:"column:is_public;not null;default:false;index:idx_books_public_created,priority:1" json:"is_public"`
	Author      string    `gorm:"column:author;size:255" json:"author,omitempty"`
	Description string    `gorm:"column:description;type:text" json:"description,omitempty"`
	FileSize    int64     `gorm:"column:file_size;not null" json:"file_size"`
	FileType    string    `gorm:"column:file_type;size:64;not null" json:"file_type"`
	UploadedBy  string    `gorm:"column:uploaded_by;size:190;not null;index" json:"uploaded_by"`
	CreatedAt   time.Time `gorm:"column:created_at;not null;index:idx_books_public_created,priority:2" json:"created_at"`
}

// TableName provides the explicit table binding for GORM.
func (Book) TableName() string {
	return "books"
}

// UploadRequest carries one book upload.
type UploadRequest struct {
	Title       string
	Author      string
	Description string
	IsPublic    bool
	FileName    string
	ContentType string
	Data        []byte
}

// Scope selects which part of the catalog a listing or search covers.
type Scope string

const (
	// ScopePublic covers books readable by everyone.
	ScopePublic Scope = "public"
	// ScopeMine covers the private books of the caller.
	ScopeMine Scope = "mine"
)

// ParseScope maps raw input to a Scope, defaulting to ScopePublic.
func ParseScope(rawInput string) (Scope, error) {
	switch Scope(rawInput) {
	case "", ScopePublic:
		return ScopePublic, nil
	case ScopeMine:
		return ScopeMine, nil
	default:
		return "", ErrInvalidScope
	}
}

// SignedURL is a time-limited download link for a book blob.
type SignedURL struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

func estimatePages(characterCount int) int {
	words := float64(characterCount) / estimatedCharsPerWord
	pages := int(words / estimatedWordsPerPage)
	if float64(pages)*estimatedWordsPerPage < words {
		pages++
	}
	return max(1, pages)
}
