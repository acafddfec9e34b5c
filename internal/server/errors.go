package server

import (
	"errors"
	"net/http"

	"github.com/MarcoPoloResearchLab/companion/backend/internal/library"
	"github.com/MarcoPoloResearchLab/companion/backend/internal/reading"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{target: reading.ErrBookNotFound, status: http.StatusNotFound, code: "book_not_found"},
	{target: library.ErrBlobNotFound, status: http.StatusNotFound, code: "file_not_found"},
	{target: library.ErrInvalidPath, status: http.StatusNotFound, code: "file_not_found"},
	{target: reading.ErrInvalidPageNumber, status: http.StatusBadRequest, code: "invalid_page_number"},
	{target: reading.ErrInvalidSettings, status: http.StatusBadRequest, code: "invalid_settings"},
	{target: reading.ErrInvalidUserID, status: http.StatusBadRequest, code: "invalid_identifier"},
	{target: reading.ErrInvalidBookName, status: http.StatusBadRequest, code: "invalid_identifier"},
	{target: library.ErrMissingTitle, status: http.StatusBadRequest, code: "missing_title"},
	{target: library.ErrUnsupportedFileType, status: http.StatusBadRequest, code: "unsupported_file_type"},
	{target: library.ErrEmptyFile, status: http.StatusBadRequest, code: "empty_file"},
	{target: library.ErrInvalidScope, status: http.StatusBadRequest, code: "invalid_scope"},
	{target: library.ErrFileTooLarge, status: http.StatusRequestEntityTooLarge, code: "file_too_large"},
	{target: library.ErrDuplicateBook, status: http.StatusConflict, code: "duplicate_book"},
}

// clientFaultCodes are service error codes caused by the uploaded content.
var clientFaultCodes = map[string]int{
	"library.upload.normalize_failed": http.StatusUnprocessableEntity,
}

type codedError interface {
	Code() string
}

func (h *httpHandler) writeError(c *gin.Context, err error) {
	for _, mapping := range errorMappings {
		if errors.Is(err, mapping.target) {
			c.JSON(mapping.status, gin.H{"error": err.Error(), "code": mapping.code})
			return
		}
	}

	code := "internal_error"
	var coded codedError
	if errors.As(err, &coded) {
		code = coded.Code()
		if status, ok := clientFaultCodes[code]; ok {
			c.JSON(status, gin.H{"error": err.Error(), "code": code})
			return
		}
	}
	h.logger.Error("request failed",
		zap.String("path", c.FullPath()),
		zap.String("code", code),
		zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "code": code})
}
