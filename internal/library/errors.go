package library

import (
	"errors"
	"fmt"

	"github.com/MarcoPoloResearchLab/companion/backend/internal/reading"
	"go.uber.org/zap"
)

var (
	// ErrBookNotFound is shared with the reading engine so both layers match with errors.Is.
	ErrBookNotFound = reading.ErrBookNotFound
	// ErrBlobNotFound indicates the stored file behind a path is missing.
	ErrBlobNotFound = errors.New("library: blob not found")
	// ErrInvalidPath indicates a blob path escaping the storage root.
	ErrInvalidPath = errors.New("library: invalid blob path")
	// ErrMissingTitle indicates an upload without a title.
	ErrMissingTitle = errors.New("library: title is required")
	// ErrUnsupportedFileType indicates an upload in a format the reader cannot paginate.
	ErrUnsupportedFileType = errors.New("library: unsupported file type")
	// ErrFileTooLarge indicates an upload above the configured limit.
	ErrFileTooLarge = errors.New("library: file too large")
	// ErrEmptyFile indicates an upload without content.
	ErrEmptyFile = errors.New("library: file is empty")
	// ErrDuplicateBook indicates a title already present in the catalog.
	ErrDuplicateBook = errors.New("library: book already exists")
	// ErrInvalidScope indicates an unknown catalog scope.
	ErrInvalidScope = errors.New("library: invalid scope")

	errMissingDatabase   = errors.New("database handle is required")
	errMissingStore      = errors.New("file store is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingSigner     = errors.New("url signer is required")
)

// ServiceError exposes a stable code for catalog and storage failures.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the operation.reason code.
func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew    = "library.service.new"
	opUpload        = "library.upload"
	opList          = "library.list"
	opSearch        = "library.search"
	opLookup        = "library.lookup"
	opFetch         = "library.fetch"
	opSign          = "library.sign"
	opStorePut      = "library.store.put"
	opStoreGet      = "library.store.get"
	opStoreDelete   = "library.store.delete"
	opWatch         = "library.watch"
	opImport        = "library.import"
	reasonQuery     = "query_failed"
	reasonInsert    = "insert_failed"
	reasonIO        = "io_failed"
	reasonIDFailed  = "id_generation_failed"
	reasonSign      = "sign_failed"
	reasonNormalize = "normalize_failed"
)

func newServiceError(operation, reason string, cause error) error {
	return &ServiceError{code: operation + "." + reason, err: cause}
}

func logError(logger *zap.Logger, operation, reason string, err error, fields ...zap.Field) {
	if logger == nil {
		return
	}
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	logger.Error("library operation failed", attrs...)
}
