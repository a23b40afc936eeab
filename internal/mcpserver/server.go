// Package mcpserver exposes the execution engine and connection registry
// as MCP tools over stdio. Handlers validate arguments and delegate; all
// session and lifecycle logic lives below this layer.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/tturner/shellmux/internal/config"
	"github.com/tturner/shellmux/internal/engine"
	"github.com/tturner/shellmux/internal/logging"
	"github.com/tturner/shellmux/internal/registry"
)

// Server wires the MCP transport to the engine and registry.
type Server struct {
	engine   *engine.Engine
	registry *registry.Registry
	cfg      *config.Config
	log      *logging.Logger

	mcpServer *server.MCPServer
}

// New creates the MCP server and registers every tool.
func New(eng *engine.Engine, reg *registry.Registry, cfg *config.Config, log *logging.Logger, version string) *Server {
	s := &Server{
		engine:   eng,
		registry: reg,
		cfg:      cfg,
		log:      log.Component("mcp"),
	}

	s.mcpServer = server.NewMCPServer(
		"shellmux",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	s.registerTools()
	return s
}

// ServeStdio blocks serving MCP over stdin/stdout until the client
// disconnects.
func (s *Server) ServeStdio() error {
	s.log.Info("serving MCP over stdio")
	return server.ServeStdio(s.mcpServer)
}
