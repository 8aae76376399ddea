package config

import "fmt"

// ConfigError represents a configuration error. Path is the dotted key
// involved, when there is one.
type ConfigError struct {
	Message string
	Path    string
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("config: %s", e.Message)
	}
	return fmt.Sprintf("config: %s: %s", e.Path, e.Message)
}

const (
	DefaultPort           = 18790
	DefaultMaxUploadBytes = 10 << 20
	DefaultDebounceMs     = 250
	DefaultLockTimeout    = 30
)

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	cfg := Config{}
	applyDefaults(&cfg)
	return cfg
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = DefaultPort
	}
	if cfg.Gateway.Bind == "" {
		cfg.Gateway.Bind = "loopback"
	}
	if cfg.Gateway.Auth.Mode == "" {
		cfg.Gateway.Auth.Mode = "token"
	}
	if cfg.Workspace.MaxUploadBytes == 0 {
		cfg.Workspace.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.Workspace.MaxDepth == 0 {
		cfg.Workspace.MaxDepth = -1
	}
	if cfg.Workspace.DebounceMs == 0 {
		cfg.Workspace.DebounceMs = DefaultDebounceMs
	}
	if cfg.Workspace.LockTimeoutSeconds == 0 {
		cfg.Workspace.LockTimeoutSeconds = DefaultLockTimeout
	}
	if cfg.Upload.RatePerMinute == 0 {
		cfg.Upload.RatePerMinute = 30
	}
	if cfg.Upload.Burst == 0 {
		cfg.Upload.Burst = 5
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = "pretty"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "workbench"
	}
	if cfg.Telemetry.SampleRatio == 0 {
		cfg.Telemetry.SampleRatio = 1
	}
}

// GatewayURL is the base URL CLI commands use to reach a running gateway.
func (c Config) GatewayURL() string {
	if c.Gateway.URL != "" {
		return c.Gateway.URL
	}
	scheme := "http"
	if c.Gateway.TLS.Enabled {
		scheme = "https"
	}
	return fmt.Sprintf("%s://127.0.0.1:%d", scheme, c.Gateway.Port)
}

// GatewaySecret returns the credential matching the configured auth mode.
func (c Config) GatewaySecret() string {
	if c.Gateway.Auth.Mode == "password" {
		return c.Gateway.Auth.Password
	}
	return c.Gateway.Auth.Token
}

const redacted = "********"

// Redacted returns a copy with credentials masked, for display.
func (c Config) Redacted() Config {
	if c.Gateway.Auth.Token != "" {
		c.Gateway.Auth.Token = redacted
	}
	if c.Gateway.Auth.Password != "" {
		c.Gateway.Auth.Password = redacted
	}
	return c
}
