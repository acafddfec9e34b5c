// Package assistant exposes the reading engine as Model Context Protocol tools
// so an assistant can page through books on behalf of one reader.
package assistant

import (
	"context"
	"errors"

	"github.com/MarcoPoloResearchLab/companion/backend/internal/library"
	"github.com/MarcoPoloResearchLab/companion/backend/internal/reading"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

// ServerName identifies the tool server to MCP clients.
const ServerName = "companion-reader"

var (
	// ErrMissingReadingService is returned when no reading executor is configured.
	ErrMissingReadingService = errors.New("assistant: reading service is required")
	// ErrMissingCatalog is returned when no catalog is configured.
	ErrMissingCatalog = errors.New("assistant: catalog is required")
	// ErrMissingReader is returned when the reader identity is empty.
	ErrMissingReader = errors.New("assistant: reader id is required")
)

// CommandExecutor runs reading commands for a reader.
type CommandExecutor interface {
	Execute(ctx context.Context, userID reading.UserID, command reading.Command) (reading.Outcome, error)
}

// Catalog lists the books a reader may open.
type Catalog interface {
	ListPublic(ctx context.Context, limit, offset int) ([]library.Book, error)
	ListForUser(ctx context.Context, userID reading.UserID, limit, offset int) ([]library.Book, error)
}

// Config wires the tool server.
type Config struct {
	Reading CommandExecutor
	Catalog Catalog
	Reader  reading.UserID
	Version string
	Logger  *zap.Logger
}

// Server serves reading tools for a single reader.
type Server struct {
	reading CommandExecutor
	catalog Catalog
	reader  reading.UserID
	logger  *zap.Logger
	server  *mcp.Server
}

// NewServer validates cfg and registers every tool.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Reading == nil {
		return nil, ErrMissingReadingService
	}
	if cfg.Catalog == nil {
		return nil, ErrMissingCatalog
	}
	if cfg.Reader == "" {
		return nil, ErrMissingReader
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	s := &Server{
		reading: cfg.Reading,
		catalog: cfg.Catalog,
		reader:  cfg.Reader,
		logger:  logger,
		server:  mcp.NewServer(&mcp.Implementation{Name: ServerName, Version: version}, nil),
	}
	s.registerTools()
	return s, nil
}

// Run serves tools over stdio until ctx ends or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("assistant tool server starting", zap.String("reader_id", s.reader.String()))
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Connect attaches the server to transport and returns the session.
func (s *Server) Connect(ctx context.Context, transport mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, transport, nil)
}
