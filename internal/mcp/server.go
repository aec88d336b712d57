package mcp

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gaius-codius/woody-mcp/internal/config"
	"github.com/gaius-codius/woody-mcp/internal/host"
)

const (
	serverName      = "woody-mcp"
	serverVersion   = "1.0.0"
	protocolVersion = "2024-11-05"

	// acceptWait is how long a single poll waits for a pending
	// connection. Effectively a non-blocking readiness check.
	acceptWait = time.Millisecond
)

// Server is the bridge between a remote MCP client and the host model.
// One serving goroutine polls the listener on a fixed tick and handles
// at most one connection per tick, fully and synchronously, so at most
// one request is ever in flight and the host model needs no locking.
type Server struct {
	cfg  config.Config
	host host.Host
	log  zerolog.Logger

	mu       sync.Mutex
	listener *net.TCPListener
	stopCh   chan struct{}
	wg       sync.WaitGroup
	running  bool
}

// NewServer creates a bridge server. It does not bind the port; call
// Start for that.
func NewServer(cfg config.Config, h host.Host) *Server {
	return &Server{
		cfg:  cfg,
		host: h,
		log:  log.With().Str("component", "bridge").Logger(),
	}
}

// Start binds the listening socket and launches the poll loop. Calling
// Start on a running server is a no-op.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.log.Debug().Msg("Start called on a running server")
		return nil
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.log.Error().Err(err).Str("addr", addr).Msg("Failed to bind listening socket")
		return fmt.Errorf("failed to bind %s: %w", addr, err)
	}

	s.listener = ln.(*net.TCPListener)
	s.stopCh = make(chan struct{})
	s.running = true
	s.wg.Add(1)
	go s.serve()

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Bool("auth", s.cfg.AuthSecret != "").
		Msg("Bridge listening")
	return nil
}

// Stop cancels the poll loop, closes the listener and releases the
// port. Calling Stop on a stopped server is a no-op. An in-flight
// request is allowed to finish.
func (s *Server) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.listener.Close()
	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	s.log.Info().Msg("Bridge stopped")
}

// Addr returns the bound listen address, or "" when not running.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return ""
	}
	return s.listener.Addr().String()
}

// serve is the poll loop: one tick, at most one connection.
func (s *Server) serve() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.pollOnce()
		}
	}
}

// pollOnce checks the listener for a pending connection and, if one is
// ready, handles it start-to-finish. A fault while handling never takes
// the loop down.
func (s *Server) pollOnce() {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("Recovered from fault during poll tick")
		}
	}()

	s.listener.SetDeadline(time.Now().Add(acceptWait))
	conn, err := s.listener.Accept()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			// No connection pending. Expected on most ticks.
			return
		}
		if errors.Is(err, net.ErrClosed) {
			return
		}
		s.log.Warn().Err(err).Msg("Accept failed, continuing on next tick")
		return
	}

	s.handleConn(conn)
}

// handleConn services exactly one request: authenticate, read one line,
// parse, dispatch, respond, close. No pipelining, no persistent session.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	connLog := s.log.With().Str("conn_id", uuid.NewString()[:8]).Logger()
	connLog.Debug().Str("remote", conn.RemoteAddr().String()).Msg("Connection accepted")

	conn.SetDeadline(time.Now().Add(s.cfg.ReadTimeout()))
	reader := bufio.NewReader(conn)

	if s.cfg.AuthSecret != "" {
		if !s.authenticate(conn, reader, connLog) {
			return
		}
	}

	line, err := reader.ReadString('\n')
	if err != nil {
		connLog.Warn().Err(err).Msg("Failed to read request line")
		return
	}

	var request JSONRPCRequest
	if err := json.Unmarshal([]byte(line), &request); err != nil {
		connLog.Warn().Err(err).Msg("Request failed JSON decoding")
		s.writeResponse(conn, connLog, &JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      nil,
			Error: &JSONRPCError{
				Code:    codeParseError,
				Message: fmt.Sprintf("Parse error: %v", err),
			},
		})
		return
	}

	response := s.handleRequest(&request, connLog)
	s.writeResponse(conn, connLog, response)
}

// authenticate reads and checks the shared-secret line. On failure the
// connection is dropped, silently unless auth_reply_on_failure is set.
func (s *Server) authenticate(conn net.Conn, reader *bufio.Reader, connLog zerolog.Logger) bool {
	line, err := reader.ReadString('\n')
	if err != nil {
		connLog.Warn().Err(err).Msg("Closed before authentication line")
		return false
	}

	var auth struct {
		Secret string `json:"secret"`
	}
	if unmarshalErr := json.Unmarshal([]byte(line), &auth); unmarshalErr != nil || auth.Secret != s.cfg.AuthSecret {
		connLog.Warn().Msg("Authentication failed, dropping connection")
		if s.cfg.AuthReplyOnFailure {
			s.writeResponse(conn, connLog, &JSONRPCResponse{
				JSONRPC: "2.0",
				ID:      nil,
				Error: &JSONRPCError{
					Code:    codeAuthFailed,
					Message: "Authentication failed",
				},
			})
		}
		return false
	}

	connLog.Debug().Msg("Authenticated")
	return true
}

// handleRequest routes a parsed request to its handler.
func (s *Server) handleRequest(request *JSONRPCRequest, connLog zerolog.Logger) *JSONRPCResponse {
	connLog.Info().Str("method", request.Method).Msg("Handling request")

	switch request.Method {
	case "ping":
		return &JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      request.ID,
			Result:  map[string]string{"status": "ok"},
		}
	case "initialize":
		return s.handleInitialize(request)
	case "tools/list":
		return s.handleToolsList(request)
	case "tools/call":
		return s.handleToolCall(request, connLog)
	default:
		return &JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      request.ID,
			Error: &JSONRPCError{
				Code:    codeMethodNotFound,
				Message: "Method not found",
				Data:    request.Method,
			},
		}
	}
}

// handleInitialize handles the initialize request.
func (s *Server) handleInitialize(request *JSONRPCRequest) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      request.ID,
		Result: InitializeResult{
			ProtocolVersion: protocolVersion,
			Capabilities: ServerCapabilities{
				Tools: ToolCapabilities{ListChanged: false},
			},
			ServerInfo: ServerInfo{
				Name:    serverName,
				Version: serverVersion,
			},
		},
	}
}

// handleToolsList returns the list of available tools.
func (s *Server) handleToolsList(request *JSONRPCRequest) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      request.ID,
		Result:  ToolsListResult{Tools: toolDefinitions()},
	}
}

// handleToolCall executes a tool call. Tool-level failures surface as a
// ToolCallResult with IsError set inside a successful envelope; only
// an undecodable params block is a protocol error.
func (s *Server) handleToolCall(request *JSONRPCRequest, connLog zerolog.Logger) *JSONRPCResponse {
	var params ToolCallParams
	if err := json.Unmarshal(request.Params, &params); err != nil {
		return &JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      request.ID,
			Error: &JSONRPCError{
				Code:    codeInvalidParams,
				Message: "Invalid params",
				Data:    err.Error(),
			},
		}
	}

	connLog.Info().Str("tool", params.Name).Msg("Dispatching tool call")
	result := s.callTool(params.Name, params.Arguments)
	if result.IsError && len(result.Content) > 0 {
		connLog.Warn().Str("tool", params.Name).Str("error", result.Content[0].Text).Msg("Tool call failed")
	}

	return &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      request.ID,
		Result:  result,
	}
}

func (s *Server) writeResponse(conn net.Conn, connLog zerolog.Logger, response *JSONRPCResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		connLog.Error().Err(err).Msg("Failed to encode response")
		return
	}
	if _, err := conn.Write(append(data, '\n')); err != nil {
		connLog.Warn().Err(err).Msg("Failed to write response")
	}
}
