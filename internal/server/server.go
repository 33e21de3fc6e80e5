package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/ironsheep/wall-texture-mcp/internal/config"
	"github.com/ironsheep/wall-texture-mcp/internal/imaging"
	"github.com/ironsheep/wall-texture-mcp/internal/pipeline"
)

// JSON-RPC error codes used by the server.
const (
	codeInvalidParams   = -32602
	codeMethodNotFound  = -32601
	codeToolFailed      = -32000
	codeRequestCanceled = -32800
)

// Server handles MCP protocol communication
type Server struct {
	cfg      *config.Config
	cache    *imaging.ImageCache
	pipeline *pipeline.Pipeline
	logger   *slog.Logger
	version  string

	in  io.Reader
	out io.Writer

	outMu sync.Mutex
	enc   *json.Encoder

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
	wg       sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithIO replaces stdin and stdout.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(s *Server) {
		s.in, s.out = in, out
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithVersion sets the version reported during initialize.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// MCPNotification represents an outgoing notification (no ID)
type MCPNotification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// New creates a server using cfg. A nil cfg uses config.Default().
func New(cfg *config.Config, opts ...Option) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	s := &Server{
		cfg:      cfg,
		cache:    imaging.NewImageCache(cfg.Limits.MaxFileSize),
		logger:   slog.Default(),
		version:  "dev",
		in:       os.Stdin,
		out:      os.Stdout,
		inflight: make(map[string]context.CancelFunc),
	}
	for _, o := range opts {
		o(s)
	}
	s.pipeline = pipeline.New(cfg.PipelineConfig(), s.logger)
	s.enc = json.NewEncoder(s.out)
	return s
}

// Run reads requests until the input closes or ctx is done, then waits for
// running tool calls to finish.
//
// Each tools/call runs on its own goroutine so that a later
// notifications/cancelled can stop it. Cancelling ctx cancels every running
// call, closes the input when it is an io.Closer and returns ctx.Err().
func (s *Server) Run(ctx context.Context) error {
	defer s.wg.Wait()

	lines := make(chan []byte)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(s.in)
		// Increase buffer size for large requests
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, 1024*1024)

		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-done:
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			if c, ok := s.in.(io.Closer); ok {
				c.Close()
			}
			s.logger.Info("shutting down", "reason", ctx.Err())
			return ctx.Err()

		case line, ok := <-lines:
			if !ok {
				if err := <-readErr; err != nil {
					return fmt.Errorf("scanner error: %w", err)
				}
				return nil
			}
			s.handleLine(ctx, line)
		}
	}
}

func (s *Server) handleLine(ctx context.Context, line []byte) {
	if len(line) == 0 {
		return
	}

	var req MCPRequest
	if err := json.Unmarshal(line, &req); err != nil {
		s.logger.Warn("failed to parse request", "error", err)
		return
	}

	if req.Method == "tools/call" && req.ID != nil {
		s.dispatch(ctx, req)
		return
	}

	if resp := s.handleRequest(ctx, &req); resp != nil {
		s.write(resp)
	}
}

// dispatch runs a tools/call in the background, tracked by its request ID.
func (s *Server) dispatch(ctx context.Context, req MCPRequest) {
	callCtx, cancel := context.WithCancel(ctx)
	key := idKey(req.ID)

	s.mu.Lock()
	s.inflight[key] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.inflight, key)
			s.mu.Unlock()
			cancel()
		}()
		s.write(s.handleToolsCall(callCtx, &req))
	}()
}

// cancelRequest stops the tool call with the given ID, if it is running.
func (s *Server) cancelRequest(id interface{}) bool {
	s.mu.Lock()
	cancel, ok := s.inflight[idKey(id)]
	s.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

func idKey(id interface{}) string {
	b, _ := json.Marshal(id)
	return string(b)
}

// write serializes one message onto the output stream.
func (s *Server) write(v interface{}) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	if err := s.enc.Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) notify(method string, params interface{}) {
	s.write(&MCPNotification{JSONRPC: "2.0", Method: method, Params: params})
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(ctx context.Context, req *MCPRequest) *MCPResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed
		return nil
	case "notifications/cancelled":
		s.handleCancelled(req)
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		if req.ID == nil {
			// Unknown notification
			return nil
		}
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    codeMethodNotFound,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

// handleInitialize responds to the initialize request
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    "wall-texture-mcp",
				"version": s.version,
			},
		},
	}
}

type cancelledParams struct {
	RequestID interface{} `json:"requestId"`
	Reason    string      `json:"reason,omitempty"`
}

func (s *Server) handleCancelled(req *MCPRequest) {
	var p cancelledParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		s.logger.Warn("invalid cancellation", "error", err)
		return
	}
	if s.cancelRequest(p.RequestID) {
		s.logger.Info("request cancelled", "id", p.RequestID, "reason", p.Reason)
	}
}
