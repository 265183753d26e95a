package agent

import (
	"context"
	"io"
	"sync"

	"bist/internal/app"
	"bist/pkg/logging"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server provides MCP tools backed by the bist runner.
type Server struct {
	app       *app.Application
	mcpServer *server.MCPServer
}

// NewServer creates the MCP server and registers its tools.
func NewServer(a *app.Application, version string) *Server {
	s := &Server{app: a}
	s.mcpServer = server.NewMCPServer(
		"bist",
		version,
		server.WithToolCapabilities(true),
	)
	s.mcpServer.AddTools(s.Tools()...)
	return s
}

// Tools returns the tool definitions with their handlers.
func (s *Server) Tools() []server.ServerTool {
	return []server.ServerTool{
		{
			Tool: mcp.NewTool("bist_run",
				mcp.WithDescription("Run bist test files and return the aggregated results"),
				mcp.WithArray("targets",
					mcp.Required(),
					mcp.Description("Files, directories or glob patterns to run"),
					mcp.Items(map[string]any{"type": "string"}),
				),
				mcp.WithString("language",
					mcp.Description("Evaluator for the test code: starlark or go"),
				),
				mcp.WithBoolean("verbose",
					mcp.Description("Echo every block before it runs"),
				),
				mcp.WithNumber("jobs",
					mcp.Description("Number of files to run at once (1-16)"),
				),
				mcp.WithNumber("fail_threshold",
					mcp.Description("Hard failures a file may have before it counts as failed"),
				),
			),
			Handler: s.handleRun,
		},
		{
			Tool: mcp.NewTool("bist_explain",
				mcp.WithDescription("Explain the markers used in bist diagnostics"),
			),
			Handler: s.handleExplain,
		},
		{
			Tool: mcp.NewTool("bist_demo",
				mcp.WithDescription("List the demos of a file, or run one of them"),
				mcp.WithString("file",
					mcp.Required(),
					mcp.Description("File to read demos from"),
				),
				mcp.WithNumber("index",
					mcp.Description("1-based demo to run; omit to list all demos"),
				),
			),
			Handler: s.handleDemo,
		},
	}
}

// Serve speaks MCP over in and out until ctx is done or in is closed.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	logging.Info("Agent", "Serving %d tools over stdio", len(s.Tools()))
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, in, out)
}

// syncWriter serializes writes from concurrently running files.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}
