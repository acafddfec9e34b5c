package server

import (
	"io"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/companion/backend/internal/reading"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type pageResponsePayload struct {
	BookName    string `json:"book_name"`
	Content     string `json:"content"`
	CurrentPage int    `json:"current_page"`
	TotalPages  int    `json:"total_pages"`
	HasNext     bool   `json:"has_next"`
	HasPrevious bool   `json:"has_previous"`
}

type searchHitPayload struct {
	Page     int    `json:"page"`
	Context  string `json:"context"`
	Position int    `json:"position"`
}

type searchResponsePayload struct {
	Results []searchHitPayload `json:"results"`
}

type historyPayload struct {
	BookName        string    `json:"book_name"`
	CurrentPage     int       `json:"current_page"`
	TotalPages      int       `json:"total_pages"`
	ReadingProgress int       `json:"reading_progress"`
	LastReadAt      time.Time `json:"last_read_at"`
}

type historyResponsePayload struct {
	History *historyPayload `json:"history"`
}

type historyListResponsePayload struct {
	History []historyPayload `json:"history"`
}

type settingsPayload struct {
	ReadingMode   string `json:"reading_mode"`
	ReadingAmount int    `json:"reading_amount"`
}

type goToRequestPayload struct {
	Page *int `json:"page"`
}

type progressEventPayload struct {
	BookName    string `json:"bookName"`
	CurrentPage int    `json:"currentPage"`
	TotalPages  int    `json:"totalPages"`
	Progress    int    `json:"progress"`
	ClientID    string `json:"clientId,omitempty"`
	Source      string `json:"source"`
	Timestamp   string `json:"timestamp"`
}

func (h *httpHandler) handleStart(c *gin.Context) {
	book, ok := h.bookParam(c)
	if !ok {
		return
	}
	h.executeNavigation(c, reading.StartCommand{Book: book})
}

func (h *httpHandler) handleContinue(c *gin.Context) {
	book, ok := h.bookParam(c)
	if !ok {
		return
	}
	h.executeNavigation(c, reading.ContinueCommand{Book: book})
}

func (h *httpHandler) handleGoTo(c *gin.Context) {
	book, ok := h.bookParam(c)
	if !ok {
		return
	}
	var request goToRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.Page == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page is required", "code": "invalid_request"})
		return
	}
	h.executeNavigation(c, reading.GoToCommand{Book: book, Page: *request.Page})
}

func (h *httpHandler) handleFind(c *gin.Context) {
	book, ok := h.bookParam(c)
	if !ok {
		return
	}
	outcome, err := h.reading.Execute(c.Request.Context(), currentReader(c), reading.FindCommand{
		Book:    book,
		Keyword: c.Query("keyword"),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	response := searchResponsePayload{Results: make([]searchHitPayload, 0)}
	if outcome.Search != nil {
		for _, hit := range outcome.Search.Results {
			response.Results = append(response.Results, searchHitPayload{
				Page:     hit.Page,
				Context:  hit.Context,
				Position: hit.Position,
			})
		}
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleHistory(c *gin.Context) {
	book, ok := h.bookParam(c)
	if !ok {
		return
	}
	outcome, err := h.reading.Execute(c.Request.Context(), currentReader(c), reading.HistoryCommand{Book: book})
	if err != nil {
		h.writeError(c, err)
		return
	}
	response := historyResponsePayload{}
	if outcome.History != nil {
		entry := newHistoryPayload(*outcome.History)
		response.History = &entry
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleListHistory(c *gin.Context) {
	positions, err := h.reading.ListHistory(c.Request.Context(), currentReader(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response := historyListResponsePayload{History: make([]historyPayload, 0, len(positions))}
	for _, position := range positions {
		response.History = append(response.History, newHistoryPayload(position))
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleGetSettings(c *gin.Context) {
	outcome, err := h.reading.Execute(c.Request.Context(), currentReader(c), reading.GetSettingsCommand{})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSettingsPayload(outcome.Settings))
}

func (h *httpHandler) handleSetSettings(c *gin.Context) {
	var request settingsPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid settings payload", "code": "invalid_request"})
		return
	}
	mode, err := reading.ParseReadingMode(request.ReadingMode)
	if err != nil {
		h.writeError(c, err)
		return
	}
	outcome, err := h.reading.Execute(c.Request.Context(), currentReader(c), reading.SetSettingsCommand{
		Mode:   mode,
		Amount: request.ReadingAmount,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSettingsPayload(outcome.Settings))
}

func (h *httpHandler) handleProgressStream(c *gin.Context) {
	readerID := currentReader(c)
	messages, cleanup := h.realtime.Subscribe(c.Request.Context(), readerID.String())
	defer cleanup()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	c.Status(http.StatusOK)
	c.SSEvent(realtimeEventHeartbeat, gin.H{"source": realtimeSourceBackend})
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case message, open := <-messages:
			if !open {
				return false
			}
			c.SSEvent(message.EventType, progressEventPayload{
				BookName:    message.BookName,
				CurrentPage: message.CurrentPage,
				TotalPages:  message.TotalPages,
				Progress:    message.Progress,
				ClientID:    message.ClientID,
				Source:      realtimeSourceBackend,
				Timestamp:   message.Timestamp.UTC().Format(time.RFC3339),
			})
			return true
		case <-ticker.C:
			c.SSEvent(realtimeEventHeartbeat, gin.H{"source": realtimeSourceBackend})
			return true
		}
	})
}

func (h *httpHandler) executeNavigation(c *gin.Context, command reading.Command) {
	readerID := currentReader(c)
	outcome, err := h.reading.Execute(c.Request.Context(), readerID, command)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if outcome.Page == nil {
		h.logger.Error("navigation returned no page", zap.String("user_id", readerID.String()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "code": "internal_error"})
		return
	}
	page := *outcome.Page
	h.realtime.Publish(RealtimeMessage{
		UserID:      readerID.String(),
		EventType:   RealtimeEventReadingProgress,
		BookName:    page.BookName.String(),
		CurrentPage: page.CurrentPage,
		TotalPages:  page.TotalPages,
		Progress:    reading.ProgressPercent(page.CurrentPage, page.TotalPages),
		ClientID:    c.GetHeader(clientIDHeader),
		Timestamp:   time.Now().UTC(),
	})
	c.JSON(http.StatusOK, pageResponsePayload{
		BookName:    page.BookName.String(),
		Content:     page.Content,
		CurrentPage: page.CurrentPage,
		TotalPages:  page.TotalPages,
		HasNext:     page.HasNext,
		HasPrevious: page.HasPrevious,
	})
}

func (h *httpHandler) bookParam(c *gin.Context) (reading.BookName, bool) {
	book, err := reading.NewBookName(c.Param("book"))
	if err != nil {
		h.writeError(c, err)
		return "", false
	}
	return book, true
}

func newHistoryPayload(position reading.ReadingPosition) historyPayload {
	return historyPayload{
		BookName:        position.BookName,
		CurrentPage:     position.CurrentPage,
		TotalPages:      position.TotalPages,
		ReadingProgress: position.ReadingProgress,
		LastReadAt:      position.LastReadAt.UTC(),
	}
}

func newSettingsPayload(settings *reading.ReadingSettings) settingsPayload {
	if settings == nil {
		return settingsPayload{ReadingMode: string(reading.DefaultReadingMode), ReadingAmount: reading.DefaultReadingAmount}
	}
	return settingsPayload{ReadingMode: string(settings.ReadingMode), ReadingAmount: settings.ReadingAmount}
}
