package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/soyeahso/workbench/internal/logging"
	"github.com/soyeahso/workbench/internal/version"
)

// maxLineBytes bounds a single JSON-RPC message.
const maxLineBytes = 4 << 20

// Server answers MCP requests read line by line from a reader.
type Server struct {
	ws  Workspace
	log *logging.Logger

	mu  sync.Mutex
	out io.Writer
}

// NewServer creates a server over ws that writes responses to out.
func NewServer(ws Workspace, out io.Writer, log *logging.Logger) *Server {
	return &Server{ws: ws, out: out, log: log.Sub("mcp")}
}

// Run serves requests from in until it is exhausted or ctx is done.
func (s *Server) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	s.log.Info().Msg("listening for requests on stdin")
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if resp := s.handle(ctx, []byte(line)); resp != nil {
			if err := s.send(resp); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}
	s.log.Info().Msg("input closed, shutting down")
	return nil
}

func (s *Server) send(resp *JSONRPCResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshaling response: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = fmt.Fprintf(s.out, "%s\n", data)
	return err
}

// handle dispatches one message. It returns nil for notifications.
func (s *Server) handle(ctx context.Context, line []byte) *JSONRPCResponse {
	var req JSONRPCRequest
	if err := json.Unmarshal(line, &req); err != nil {
		s.log.Warn().Err(err).Msg("parse error")
		return errorResponse(nil, codeParseError, "Parse error", err.Error())
	}
	s.log.Debug().Str("method", req.Method).Any("id", req.ID).Msg("request")

	var (
		result any
		rpcErr *RPCError
	)
	switch req.Method {
	case "initialize":
		result = InitializeResult{
			ProtocolVersion: protocolVersion,
			Capabilities:    Capabilities{Tools: map[string]any{}},
			ServerInfo:      ServerInfo{Name: "workspace", Version: version.Version},
		}
	case "ping":
		result = map[string]any{}
	case "tools/list":
		result = ListToolsResult{Tools: tools()}
	case "tools/call":
		result, rpcErr = s.callTool(ctx, req.Params)
	default:
		if strings.HasPrefix(req.Method, "notifications/") {
			return nil
		}
		rpcErr = &RPCError{Code: codeMethodNotFound, Message: "Method not found", Data: "unknown method: " + req.Method}
	}

	if req.isNotification() {
		return nil
	}
	if rpcErr != nil {
		return &JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Error: rpcErr}
	}
	return &JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: result}
}

func errorResponse(id any, code int, message string, data any) *JSONRPCResponse {
	return &JSONRPCResponse{JSONRPC: "2.0", ID: id, Error: &RPCError{Code: code, Message: message, Data: data}}
}

var errUnknownTool = errors.New("unknown tool")

func (s *Server) callTool(ctx context.Context, raw json.RawMessage) (any, *RPCError) {
	var params CallToolParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, &RPCError{Code: codeInvalidParams, Message: "Invalid params", Data: err.Error()}
	}
	if len(params.Arguments) == 0 {
		params.Arguments = json.RawMessage("{}")
	}

	text, err := s.runTool(ctx, params.Name, params.Arguments)
	if errors.Is(err, errUnknownTool) {
		return nil, &RPCError{Code: codeInvalidParams, Message: "Unknown tool", Data: params.Name}
	}
	if err != nil {
		s.log.Warn().Err(err).Str("tool", params.Name).Msg("tool failed")
		return errorResult(err), nil
	}
	return textResult(text), nil
}
