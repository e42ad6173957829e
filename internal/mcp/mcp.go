// Package mcp implements the Model Context Protocol server for Warden.
//
// The MCP server exposes governance to MCP-compatible agents: they submit
// proposals, report execution outcomes and read back explanations through
// tools, and browse recent verdicts through resources.
package mcp

import (
	"log/slog"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/service/governance"
)

// Server wraps the MCP server with Warden's governance service.
type Server struct {
	mcpServer  *mcpserver.MCPServer
	governance *governance.Service
	logger     *slog.Logger
}

// New creates and configures a new MCP server with all resources and tools.
func New(svc *governance.Service, logger *slog.Logger, version string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		governance: svc,
		logger:     logger,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"warden",
		version,
		mcpserver.WithResourceCapabilities(false, true),
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithInstructions(instructions),
	)

	s.registerResources()
	s.registerTools()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

const instructions = `Warden governs automated decisions before they run.

Call warden_evaluate with every proposed action and act only on an APPROVED
verdict. After acting, call warden_record_execution with the decision_id so
the aggressiveness window and failure tracking stay accurate. Use
warden_explain to read the reasoning chain behind any recorded verdict.`

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
