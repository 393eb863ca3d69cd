package mcptransport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"resights/internal/registry"
)

const (
	serverName    = "resights-mcp"
	serverVersion = "1.0.0"
)

// RegistryService is the subset of the registry facade exposed as tools.
type RegistryService interface {
	Table(ctx context.Context, bfe registry.BFE, projection registry.Projection) (*registry.Table, error)
	Valuations(ctx context.Context, bfe registry.BFE) (json.RawMessage, error)
	Call(ctx context.Context, req registry.CallRequest) (json.RawMessage, error)
	Health(ctx context.Context) error
}

// Server exposes the registry operations as MCP tools so agents can query
// property data without handling credentials.
type Server struct {
	mcp     *server.MCPServer
	service RegistryService
	logger  *slog.Logger
}

// New creates the MCP server with every registry tool registered.
func New(service RegistryService, logger *slog.Logger) (*Server, error) {
	if service == nil {
		return nil, errors.New("registry service is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{service: service, logger: logger}
	s.mcp = server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(true),
	)
	s.registerPropertyTools()
	s.registerGatewayTools()
	return s, nil
}

// ServeStdio serves the protocol on stdin/stdout until stdin closes.
func (s *Server) ServeStdio() error {
	s.logger.Info("starting MCP stdio server", "name", serverName, "version", serverVersion)
	return server.ServeStdio(s.mcp)
}

// MCP returns the underlying protocol server.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// toolError reports a failure as a tool result so the agent can read it.
// Protocol errors are reserved for a broken session.
func toolError(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(registry.Summary(err))
}
