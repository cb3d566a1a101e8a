// Package mcpserver exposes the broker's tools over the Model Context
// Protocol. Transport is stdio: the orchestrating agent launches the binary
// and speaks MCP over stdin/stdout, which is why all logging in this
// process goes to stderr.
package mcpserver

import (
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/grovelabs/grove-coder/internal/services"
)

const (
	serverName    = "grove-coder"
	serverVersion = "0.2.0"
)

// Server wraps an MCP server around a request broker.
type Server struct {
	broker    *services.Broker
	mcpServer *mcpserver.MCPServer
}

func New(broker *services.Broker) *Server {
	s := &Server{
		broker: broker,
		mcpServer: mcpserver.NewMCPServer(
			serverName,
			serverVersion,
			mcpserver.WithToolCapabilities(false),
		),
	}
	s.registerTools()
	return s
}

// MCPServer exposes the underlying MCP server, mainly for tests.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// ServeStdio serves MCP over stdin/stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	return mcpserver.ServeStdio(s.mcpServer)
}
