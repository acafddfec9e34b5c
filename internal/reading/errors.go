package reading

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	// ErrBookNotFound indicates the book or its content could not be loaded.
	ErrBookNotFound = errors.New("reading: book not found")
	// ErrInvalidPageNumber indicates a page outside [1, totalPages].
	ErrInvalidPageNumber = errors.New("reading: invalid page number")
	// ErrInvalidSettings indicates an unknown reading mode or an out-of-range amount.
	ErrInvalidSettings = errors.New("reading: invalid settings")
	// ErrInvalidUserID indicates that a user identifier is empty or exceeds storage bounds.
	ErrInvalidUserID = errors.New("reading: invalid user id")
	// ErrInvalidBookName indicates that a book name is empty or exceeds storage bounds.
	ErrInvalidBookName = errors.New("reading: invalid book name")
	// ErrUnknownCommand indicates a command type Execute does not handle.
	ErrUnknownCommand = errors.New("reading: unknown command")

	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingDocuments  = errors.New("document source is required")
	errMissingPositions  = errors.New("position store is required")
	errMissingSettings   = errors.New("settings store is required")
	noOpLogger           = zap.NewNop()
)

// ServiceError carries a stable machine-readable code for storage and wiring failures.
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
	opPositionStoreNew = "reading.position_store.new"
	opSettingsStoreNew = "reading.settings_store.new"
	opServiceNew       = "reading.service.new"
	opPositionGet      = "reading.position_get"
	opPositionList     = "reading.position_list"
	opPositionUpsert   = "reading.position_upsert"
	opSettingsGet      = "reading.settings_get"
	opSettingsSet      = "reading.settings_set"
	opStart            = "reading.start"
	opContinue         = "reading.continue"
	opGoTo             = "reading.goto"
	opFind             = "reading.find"

	reasonMissingDatabase   = "missing_database"
	reasonMissingIDProvider = "missing_id_provider"
	reasonQueryFailed       = "query_failed"
	reasonUpsertFailed      = "upsert_failed"
	reasonIDFailed          = "id_generation_failed"
	reasonFetchFailed       = "fetch_failed"

	fieldUserID   = "user_id"
	fieldBookName = "book_name"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

func loggerOrDefault(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return noOpLogger
	}
	return logger
}

func logServiceError(logger *zap.Logger, operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	loggerOrDefault(logger).Error("reading service error", attrs...)
}
