// Package mcp exposes the indexing pipeline as MCP tools over stdio.
//
// The stdio transport owns stdout, so nothing in this package may print
// there; all diagnostics go through the zap logger on stderr.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/codectx/internal/index"
)

// Server bridges MCP tool calls to the index service.
type Server struct {
	mcp      *mcp.Server
	indexSvc *index.Service
	logger   *zap.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "codectx")
	Name string

	// Version is the server version (default: "dev")
	Version string

	// Logger for structured logging
	Logger *zap.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "codectx",
		Version: "dev",
		Logger:  zap.NewNop(),
	}
}

// NewServer creates the MCP server and registers all tools.
func NewServer(cfg *Config, indexSvc *index.Service) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if indexSvc == nil {
		return nil, fmt.Errorf("index service is required")
	}

	s := &Server{
		mcp: mcp.NewServer(
			&mcp.Implementation{
				Name:    cfg.Name,
				Version: cfg.Version,
			},
			nil,
		),
		indexSvc: indexSvc,
		logger:   cfg.Logger,
	}
	s.registerTools()
	return s, nil
}

// Run serves MCP on the stdio transport until the context is canceled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport")
	transport := &mcp.StdioTransport{}
	if err := s.mcp.Run(ctx, transport); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}
