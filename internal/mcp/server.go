package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/easel-dev/easel/internal/config"
	"github.com/easel-dev/easel/internal/preview"
	"github.com/easel-dev/easel/internal/render"
	"github.com/easel-dev/easel/internal/workspace"
)

// maxLineSize bounds a single stdin line. Diagram sources are small; the
// ceiling only guards against a runaway client.
const maxLineSize = 4 * 1024 * 1024

// serverInstructions is sent once per session in the initialize response so
// tool descriptions can stay short.
const serverInstructions = `Easel renders Mermaid diagrams to a live-reloading browser preview.

Workflow:
- render_diagram: save source, render it, and register a preview session. Returns the preview URL. Re-rendering the same id reloads any open browser tabs in place.
- list_diagrams: list rendered diagrams in the workspace with their live state.
- open_editor: get a mermaid.live deep link carrying the saved source for hand editing.

Diagram ids are [A-Za-z0-9_-]+. Errors come back as structured JSON with an "error" code and a "retry" instruction.`

// Options configures a Server. Zero-value fields fall back to stdin/stdout,
// the default logger, and the real preview singleton.
type Options struct {
	Store    *workspace.Store
	Renderer render.Renderer
	Config   *config.Config
	Version  string
	Logger   *slog.Logger

	// In and Out carry the protocol traffic. Tests substitute buffers.
	In  io.Reader
	Out io.Writer

	// EnsurePreview starts (or returns) the preview server. Defaults to the
	// process-wide singleton wired from Config.
	EnsurePreview func() (*preview.Server, int, error)

	// OpenBrowser opens a URL in the user's browser. Nil disables opening.
	OpenBrowser func(url string) error
}

// Server speaks MCP over stdio and dispatches tool calls against the
// workspace, the renderer, and the preview server.
type Server struct {
	store    *workspace.Store
	renderer render.Renderer
	cfg      *config.Config
	version  string
	logger   *slog.Logger

	in  io.Reader
	out io.Writer

	ensurePreview func() (*preview.Server, int, error)
	openBrowser   func(url string) error

	// preview is set after the first successful ensure. Requests are handled
	// one at a time off the stdin loop, so no lock is needed.
	preview *preview.Server
}

// NewServer wires a Server from opts.
func NewServer(opts Options) *Server {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.New()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:         opts.Store,
		renderer:      opts.Renderer,
		cfg:           cfg,
		version:       opts.Version,
		logger:        logger.With("component", "mcp"),
		in:            opts.In,
		out:           opts.Out,
		ensurePreview: opts.EnsurePreview,
		openBrowser:   opts.OpenBrowser,
	}
	if s.in == nil {
		s.in = os.Stdin
	}
	if s.out == nil {
		s.out = os.Stdout
	}
	if s.ensurePreview == nil {
		s.ensurePreview = func() (*preview.Server, int, error) {
			return preview.EnsureServer(preview.Options{
				Host:       cfg.Preview.Host,
				PortLow:    cfg.Preview.PortRangeLow,
				PortHigh:   cfg.Preview.PortRangeHigh,
				Store:      s.store,
				Renderer:   s.renderer,
				EditorBase: cfg.Editor.BaseURL,
				Logger:     logger,
			})
		}
	}
	return s
}

// Run reads requests line by line until stdin closes or ctx is canceled.
// Responses are written in request order.
func (s *Server) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	s.logger.Info("mcp server listening on stdio", "version", s.version)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var req JSONRPCRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.writeResponse(parseErrorResponse(line, err))
			continue
		}

		if resp := s.HandleRequest(req); resp != nil {
			s.writeResponse(*resp)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("mcp: read stdin: %w", err)
	}
	s.logger.Info("mcp stdin closed, exiting")
	return nil
}

// writeResponse emits one response line. Write errors mean the client is
// gone; log and let the read loop discover EOF.
func (s *Server) writeResponse(resp JSONRPCResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("marshal response", "error", err)
		return
	}
	if _, err := fmt.Fprintf(s.out, "%s\n", data); err != nil {
		s.logger.Warn("write response", "error", err)
	}
}

// parseErrorResponse builds the -32700 reply for an unparseable line,
// echoing the request id when one can still be dug out of the JSON.
func parseErrorResponse(line []byte, parseErr error) JSONRPCResponse {
	var id any
	var partial map[string]any
	if json.Unmarshal(line, &partial) == nil {
		switch v := partial["id"].(type) {
		case string, float64:
			id = v
		}
	}
	return JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &JSONRPCError{Code: -32700, Message: "Parse error: " + parseErr.Error()},
	}
}

// methodHandlers maps method names to their handlers.
var methodHandlers = map[string]func(*Server, JSONRPCRequest) JSONRPCResponse{
	"initialize": (*Server).handleInitialize,
	"tools/list": (*Server).handleToolsList,
	"tools/call": (*Server).handleToolsCall,
}

// staticResponses maps methods answered with a fixed result body.
var staticResponses = map[string]string{
	"ping":         `{}`,
	"initialized":  `{}`,
	"prompts/list": `{"prompts":[]}`,
}

// HandleRequest processes one request and returns its response, or nil for
// notifications (which must not be answered per JSON-RPC 2.0).
func (s *Server) HandleRequest(req JSONRPCRequest) *JSONRPCResponse {
	if req.HasInvalidID() {
		return &JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      nil,
			Error:   &JSONRPCError{Code: -32600, Message: "Invalid Request: id must be string or number when present"},
		}
	}

	if !req.HasID() {
		return nil
	}

	if req.JSONRPC != "2.0" {
		return &JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &JSONRPCError{Code: -32600, Message: `Invalid Request: jsonrpc must be "2.0"`},
		}
	}

	if handler, ok := methodHandlers[req.Method]; ok {
		resp := handler(s, req)
		return &resp
	}

	if static, ok := staticResponses[req.Method]; ok {
		return &JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: json.RawMessage(static)}
	}

	return &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Error:   &JSONRPCError{Code: -32601, Message: "Method not found: " + req.Method},
	}
}

func (s *Server) handleInitialize(req JSONRPCRequest) JSONRPCResponse {
	result := MCPInitializeResult{
		ProtocolVersion: negotiateProtocolVersion(req.Params),
		ServerInfo: MCPServerInfo{
			Name:    "easel",
			Version: s.version,
		},
		Capabilities: MCPCapabilities{Tools: MCPToolsCapability{}},
		Instructions: serverInstructions,
	}
	return JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: safeMarshal(result, `{}`)}
}

func (s *Server) handleToolsList(req JSONRPCRequest) JSONRPCResponse {
	result := MCPToolsListResult{Tools: toolCatalog()}
	return JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: safeMarshal(result, `{"tools":[]}`)}
}

func (s *Server) handleToolsCall(req JSONRPCRequest) JSONRPCResponse {
	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return JSONRPCResponse{
			JSONRPC: "2.0", ID: req.ID,
			Error: &JSONRPCError{Code: -32602, Message: "Invalid params: " + err.Error()},
		}
	}

	result, ok := s.callTool(params.Name, params.Arguments)
	if !ok {
		return JSONRPCResponse{
			JSONRPC: "2.0", ID: req.ID,
			Error: &JSONRPCError{Code: -32601, Message: "Unknown tool: " + params.Name},
		}
	}
	return JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: result}
}
