package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/soyeahso/workbench/internal/domain"
	"github.com/soyeahso/workbench/internal/mcpservers"
	"github.com/soyeahso/workbench/internal/store"
	"github.com/soyeahso/workbench/internal/workspace"
)

// Envelope is the body of every /api response.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

var (
	errUnavailable = errors.New("backend not configured")
	errRateLimited = errors.New("rate limit exceeded")
	errConfirm     = errors.New("confirm=true is required")
	errBadRequest  = errors.New("bad request")
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 500
	maxJSONBody      = 4 << 20
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// respond writes a success envelope.
func respond(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, Envelope{Success: true, Message: message, Data: data})
}

// fail writes an error envelope with the status that matches err.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	ev := s.log.Debug()
	if status >= http.StatusInternalServerError {
		ev = s.log.Error()
	}
	ev.Err(err).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Msg("api request failed")

	writeJSON(w, status, Envelope{
		Success: false,
		Message: http.StatusText(status),
		Error:   err.Error(),
	})
}

// errorStatus maps backend errors onto HTTP status codes.
func errorStatus(err error) int {
	var ve *domain.ValidationError
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &ve),
		errors.Is(err, errBadRequest),
		errors.Is(err, errConfirm),
		errors.Is(err, workspace.ErrInvalidPath),
		errors.Is(err, workspace.ErrInvalidQuery),
		errors.Is(err, workspace.ErrUnsupportedType),
		errors.Is(err, workspace.ErrIsFolder),
		errors.Is(err, workspace.ErrNotFolder),
		errors.Is(err, workspace.ErrBadPatch),
		errors.Is(err, store.ErrInvalidEvent),
		errors.Is(err, mcpservers.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, workspace.ErrNotFound),
		errors.Is(err, store.ErrNotFound),
		errors.Is(err, mcpservers.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, workspace.ErrExists),
		errors.Is(err, workspace.ErrLocked),
		errors.Is(err, store.ErrExists):
		return http.StatusConflict
	case errors.Is(err, store.ErrPredefined),
		errors.Is(err, mcpservers.ErrBaseServer):
		return http.StatusForbidden
	case errors.Is(err, workspace.ErrTooLarge),
		errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, errUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorCode names a status for RPC error frames.
func errorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return CodeInvalidParams
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusRequestEntityTooLarge:
		return CodeTooLarge
	case http.StatusTooManyRequests:
		return CodeRateLimited
	case http.StatusServiceUnavailable:
		return CodeUnavailable
	default:
		return CodeInternal
	}
}

// decodeJSON reads a JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is empty", errBadRequest)
		}
		return fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
	}
	return nil
}

// queryInt parses an integer query parameter, returning def when absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", errBadRequest, name)
	}
	return n, nil
}

// pageParams parses limit and offset. limit defaults to 50.
func pageParams(r *http.Request) (limit, offset int, err error) {
	limit, err = queryInt(r, "limit", defaultPageLimit)
	if err != nil {
		return 0, 0, err
	}
	offset, err = queryInt(r, "offset", 0)
	if err != nil {
		return 0, 0, err
	}
	if limit <= 0 || limit > maxPageLimit {
		return 0, 0, fmt.Errorf("%w: limit must be between 1 and %d", errBadRequest, maxPageLimit)
	}
	if offset < 0 {
		return 0, 0, fmt.Errorf("%w: offset must not be negative", errBadRequest)
	}
	return limit, offset, nil
}

// confirmed reports whether a destructive request carries confirm=true.
func confirmed(r *http.Request) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	return v
}

// apiAuth rejects /api requests without a valid bearer credential and
// counts failures against the same limiter as the websocket handshake.
func (s *Server) apiAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.authLimiter.allow(r.RemoteAddr) {
			writeJSON(w, http.StatusTooManyRequests, Envelope{
				Message: http.StatusText(http.StatusTooManyRequests),
				Error:   "too many failed auth attempts",
			})
			return
		}
		result := AuthorizeHTTP(s.auth, r)
		if !result.OK {
			s.authLimiter.recordFailure(r.RemoteAddr)
			w.Header().Set("WWW-Authenticate", `Bearer realm="workbench"`)
			writeJSON(w, http.StatusUnauthorized, Envelope{
				Message: http.StatusText(http.StatusUnauthorized),
				Error:   result.Reason,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
