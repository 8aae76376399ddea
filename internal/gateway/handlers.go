package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// HealthResponse is returned by health endpoints. The public HTTP endpoint
// only populates Status; the authenticated RPC handler fills the rest.
type HealthResponse struct {
	Status   string          `json:"status"`
	Version  string          `json:"version,omitempty"`
	Clients  int             `json:"clients,omitempty"`
	Uptime   string          `json:"uptime,omitempty"`
	Backends map[string]bool `json:"backends,omitempty"`
}

// backends reports which optional stores are configured.
func (s *Server) backends() map[string]bool {
	return map[string]bool{
		"workspace": s.workspace != nil,
		"presets":   s.presets != nil,
		"chats":     s.chats != nil,
		"mcp":       s.mcp != nil,
	}
}

// handleHealth answers the unauthenticated liveness check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})
}

// handleNotFound returns a 404 for unknown routes.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, Envelope{
		Success: false,
		Message: "not found",
		Error:   r.URL.Path,
	})
}

func (s *Server) uptime() time.Duration {
	if s.startedAt.IsZero() {
		return 0
	}
	return time.Since(s.startedAt).Round(time.Second)
}

// RequestHandler processes an incoming RPC request frame from a client.
type RequestHandler func(ctx *RequestContext)

// RequestContext carries everything a handler needs.
type RequestContext struct {
	Ctx     context.Context
	Client  *Client
	Frame   Frame
	Server  *Server
	Started time.Time
}

// Respond sends a success response.
func (rc *RequestContext) Respond(payload any) {
	if err := rc.Client.Respond(rc.Frame.ID, payload); err != nil {
		rc.Server.log.Warn().Err(err).Str("method", rc.Frame.Method).Msg("failed to send response")
		return
	}
	rc.logDone("")
}

// RespondError sends an error response.
func (rc *RequestContext) RespondError(code, message string) {
	rc.Client.RespondError(rc.Frame.ID, ErrorShape{
		Code:    code,
		Message: message,
	})
	rc.logDone(code)
}

// RespondErr maps a backend error onto an RPC error code.
func (rc *RequestContext) RespondErr(err error) {
	rc.RespondError(errorCode(errorStatus(err)), err.Error())
}

func (rc *RequestContext) logDone(code string) {
	ev := rc.Server.log.Debug().
		Str("connId", rc.Client.ConnID).
		Str("method", rc.Frame.Method).
		Dur("took", time.Since(rc.Started))
	if code != "" {
		ev = ev.Str("code", code)
	}
	ev.Msg("rpc")
}

// Params unmarshals the request params into the given target.
func (rc *RequestContext) Params(target any) error {
	if rc.Frame.Params == nil {
		return nil
	}
	return json.Unmarshal(rc.Frame.Params, target)
}
