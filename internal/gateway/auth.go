package gateway

import (
	"crypto/subtle"
	"net/http"
	"os"
	"strings"

	"github.com/soyeahso/workbench/internal/config"
)

// Auth modes. The mode picks which secret a client must present; REST
// callers send it as a bearer credential either way.
const (
	AuthModeToken    = "token"
	AuthModePassword = "password"
)

// AuthResult is the outcome of an authentication attempt.
type AuthResult struct {
	OK     bool   `json:"ok"`
	Method string `json:"method,omitempty"` // "token" | "password" | "none"
	Reason string `json:"reason,omitempty"`
}

func denied(reason string) AuthResult { return AuthResult{Reason: reason} }

// ResolvedAuth is the gateway's effective credential.
type ResolvedAuth struct {
	Mode     string
	Token    string
	Password string
}

// ResolveAuth fills empty config credentials from WORKBENCH_GATEWAY_TOKEN
// and WORKBENCH_GATEWAY_PASSWORD. Without a mode, a password selects
// password mode.
func ResolveAuth(cfg config.GatewayAuth) ResolvedAuth {
	auth := ResolvedAuth{
		Mode:     cfg.Mode,
		Token:    firstNonEmpty(cfg.Token, os.Getenv("WORKBENCH_GATEWAY_TOKEN")),
		Password: firstNonEmpty(cfg.Password, os.Getenv("WORKBENCH_GATEWAY_PASSWORD")),
	}
	if auth.Mode == "" {
		auth.Mode = AuthModeToken
		if auth.Password != "" {
			auth.Mode = AuthModePassword
		}
	}
	return auth
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Secret returns the credential clients must present in the current mode.
func (a ResolvedAuth) Secret() string {
	if a.Mode == AuthModePassword {
		return a.Password
	}
	return a.Token
}

// Authorize checks the credentials of a websocket connect request. A
// websocket client is always refused when the server has no secret.
func Authorize(serverAuth ResolvedAuth, clientAuth *ConnectAuth) AuthResult {
	if clientAuth == nil {
		return denied("no credentials provided")
	}

	var presented string
	switch serverAuth.Mode {
	case AuthModeToken:
		presented = clientAuth.Token
	case AuthModePassword:
		presented = clientAuth.Password
	default:
		return denied("unknown auth mode: " + serverAuth.Mode)
	}

	mode := serverAuth.Mode
	switch {
	case serverAuth.Secret() == "":
		return denied("server " + mode + " not configured")
	case presented == "":
		return denied(mode + " required")
	case !safeEqual(presented, serverAuth.Secret()):
		return denied(mode + "_mismatch")
	}
	return AuthResult{OK: true, Method: mode}
}

// AuthorizeHTTP checks the bearer credential of a REST request. When the
// server has no secret configured, every request is accepted.
func AuthorizeHTTP(serverAuth ResolvedAuth, r *http.Request) AuthResult {
	if serverAuth.Secret() == "" {
		return AuthResult{OK: true, Method: "none"}
	}
	credential, ok := bearer(r)
	if !ok {
		return denied("bearer credential required")
	}
	if serverAuth.Mode == AuthModePassword {
		return Authorize(serverAuth, &ConnectAuth{Password: credential})
	}
	return Authorize(serverAuth, &ConnectAuth{Token: credential})
}

func bearer(r *http.Request) (string, bool) {
	scheme, credential, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || credential == "" {
		return "", false
	}
	return credential, true
}

// safeEqual compares in constant time, including when the lengths differ.
func safeEqual(a, b string) bool {
	lenMatch := subtle.ConstantTimeEq(int32(len(a)), int32(len(b)))
	cmp := subtle.ConstantTimeCompare([]byte(a), []byte(b))
	return subtle.ConstantTimeSelect(lenMatch, cmp, 0) == 1
}
