package server

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/MarcoPoloResearchLab/companion/backend/internal/library"
	"github.com/MarcoPoloResearchLab/companion/backend/internal/reading"
	"github.com/gin-gonic/gin"
)

const (
	uploadFileField      = "file"
	multipartOverheadCap = 1 << 20
)

type bookListResponsePayload struct {
	Books []library.Book `json:"books"`
}

func (h *httpHandler) handleListBooks(c *gin.Context) {
	scope, err := library.ParseScope(c.Query("scope"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	limit := queryInt(c, "limit", library.DefaultListLimit)
	offset := queryInt(c, "offset", 0)

	var books []library.Book
	switch scope {
	case library.ScopeMine:
		books, err = h.library.ListForUser(c.Request.Context(), currentReader(c), limit, offset)
	default:
		books, err = h.library.ListPublic(c.Request.Context(), limit, offset)
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newBookListPayload(books))
}

func (h *httpHandler) handleSearchBooks(c *gin.Context) {
	scope, err := library.ParseScope(c.Query("scope"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	books, err := h.library.SearchCatalog(c.Request.Context(), currentReader(c), scope, c.Query("q"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newBookListPayload(books))
}

func (h *httpHandler) handleUploadBook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.library.MaxUploadBytes()+multipartOverheadCap)

	fileHeader, err := c.FormFile(uploadFileField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(c, library.ErrFileTooLarge)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required", "code": "invalid_request"})
		return
	}
	if fileHeader.Size > h.library.MaxUploadBytes() {
		h.writeError(c, library.ErrFileTooLarge)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is unreadable", "code": "invalid_request"})
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is unreadable", "code": "invalid_request"})
		return
	}

	isPublic, _ := strconv.ParseBool(c.PostForm("is_public"))
	book, err := h.library.Upload(c.Request.Context(), currentReader(c), library.UploadRequest{
		Title:       c.PostForm("title"),
		Author:      c.PostForm("author"),
		Description: c.PostForm("description"),
		IsPublic:    isPublic,
		FileName:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, book)
}

func (h *httpHandler) handleBookURL(c *gin.Context) {
	bookName, err := reading.NewBookName(c.Param("name"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	signed, err := h.library.SignedURL(c.Request.Context(), currentReader(c), bookName)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, signed)
}

func (h *httpHandler) handleDownload(c *gin.Context) {
	blobPath := strings.TrimPrefix(c.Param("path"), "/")
	if err := h.downloads.VerifyPath(c.Query("token"), blobPath); err != nil {
		h.logger.Info("download token rejected")
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "code": "invalid_download_token"})
		return
	}
	data, err := h.library.OpenBlob(blobPath)
	if err != nil {
		h.writeError(c, err)
		return
	}
	contentType := mime.TypeByExtension(path.Ext(blobPath))
	if contentType == "" {
		contentType = library.ContentTypePlain
	}
	c.Data(http.StatusOK, contentType, data)
}

func newBookListPayload(books []library.Book) bookListResponsePayload {
	if books == nil {
		books = make([]library.Book, 0)
	}
	return bookListResponsePayload{Books: books}
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
