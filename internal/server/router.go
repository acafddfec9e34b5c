package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/companion/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/companion/backend/internal/library"
	"github.com/MarcoPoloResearchLab/companion/backend/internal/reading"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	readerContextKey         = "companion_reader_id"
	clientIDHeader           = "X-Client-ID"
	defaultHeartbeatInterval = 25 * time.Second
)

var (
	errMissingSessionValidator = errors.New("session validator dependency required")
	errMissingReaderResolver   = errors.New("reader resolver dependency required")
	errMissingReadingService   = errors.New("reading service dependency required")
	errMissingLibraryService   = errors.New("library service dependency required")
	errMissingDownloadVerifier = errors.New("download verifier dependency required")
)

// SessionValidator authenticates a request and returns its session claims.
type SessionValidator interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
}

// ReaderResolver maps session claims to a reader id.
type ReaderResolver interface {
	ResolveReader(ctx context.Context, claims auth.SessionClaims) (reading.UserID, error)
}

// DownloadVerifier checks signed download tokens.
type DownloadVerifier interface {
	VerifyPath(token, blobPath string) error
}

// Dependencies wires the HTTP surface.
type Dependencies struct {
	Sessions          SessionValidator
	Readers           ReaderResolver
	Reading           *reading.Service
	Library           *library.Service
	Downloads         DownloadVerifier
	Realtime          *RealtimeDispatcher
	Limiter           *RateLimiter
	AllowedOrigins    []string
	HeartbeatInterval time.Duration
	Logger            *zap.Logger
}

// NewHTTPHandler builds the gin engine serving the books and reading API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Sessions == nil {
		return nil, errMissingSessionValidator
	}
	if deps.Readers == nil {
		return nil, errMissingReaderResolver
	}
	if deps.Reading == nil {
		return nil, errMissingReadingService
	}
	if deps.Library == nil {
		return nil, errMissingLibraryService
	}
	if deps.Downloads == nil {
		return nil, errMissingDownloadVerifier
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	realtime := deps.Realtime
	if realtime == nil {
		realtime = NewRealtimeDispatcher()
	}
	heartbeat := deps.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}

	handler := &httpHandler{
		sessions:  deps.Sessions,
		readers:   deps.Readers,
		reading:   deps.Reading,
		library:   deps.Library,
		downloads: deps.Downloads,
		realtime:  realtime,
		limiter:   deps.Limiter,
		heartbeat: heartbeat,
		logger:    logger,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(deps.AllowedOrigins...))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/files/*path", handler.handleDownload)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest, handler.throttle)

	protected.GET("/books", handler.handleListBooks)
	protected.GET("/books/search", handler.handleSearchBooks)
	protected.POST("/books", handler.handleUploadBook)
	protected.GET("/books/:name/url", handler.handleBookURL)

	protected.GET("/reading/history", handler.handleListHistory)
	protected.GET("/reading/settings", handler.handleGetSettings)
	protected.PUT("/reading/settings", handler.handleSetSettings)
	protected.GET("/reading/events", handler.handleProgressStream)
	protected.POST("/reading/:book/start", handler.handleStart)
	protected.POST("/reading/:book/continue", handler.handleContinue)
	protected.POST("/reading/:book/goto", handler.handleGoTo)
	protected.GET("/reading/:book/search", handler.handleFind)
	protected.GET("/reading/:book/history", handler.handleHistory)

	return router, nil
}

type httpHandler struct {
	sessions  SessionValidator
	readers   ReaderResolver
	reading   *reading.Service
	library   *library.Service
	downloads DownloadVerifier
	realtime  *RealtimeDispatcher
	limiter   *RateLimiter
	heartbeat time.Duration
	logger    *zap.Logger
}

func corsMiddleware(origins ...string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-TAuth-Tenant", clientIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	allowAll := len(origins) == 0
	for _, origin := range origins {
		if origin == "*" {
			allowAll = true
		}
	}
	if allowAll {
		cfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	claims, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredSessionToken) || errors.Is(err, auth.ErrMissingSessionToken) {
			h.logger.Info("session validation failed", zap.Error(err))
		} else {
			h.logger.Warn("session validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": "unauthorized"})
		return
	}
	readerID, err := h.readers.ResolveReader(c.Request.Context(), claims)
	if err != nil {
		h.logger.Warn("reader resolution failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": "unauthorized"})
		return
	}
	c.Set(readerContextKey, readerID)
	c.Next()
}

func currentReader(c *gin.Context) reading.UserID {
	value, _ := c.Get(readerContextKey)
	readerID, _ := value.(reading.UserID)
	return readerID
}
