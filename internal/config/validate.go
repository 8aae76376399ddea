package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

var (
	validBinds         = []string{"auto", "lan", "loopback", "custom"}
	validAuthModes     = []string{"token", "password"}
	validLogLevels     = []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	validConsoleStyles = []string{"pretty", "compact", "json"}
	validModes         = []string{"simple", "ReAct", "orchestrator", "workflow"}
)

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue
	add := func(path, format string, args ...any) {
		issues = append(issues, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	// Gateway
	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		add("gateway.port", "port must be 0-65535, got %d", cfg.Gateway.Port)
	}
	if cfg.Gateway.Bind != "" && !slices.Contains(validBinds, cfg.Gateway.Bind) {
		add("gateway.bind", "must be one of %v, got %q", validBinds, cfg.Gateway.Bind)
	}
	if cfg.Gateway.Bind == "custom" && cfg.Gateway.CustomBindHost == "" {
		add("gateway.customBindHost", "required when bind is custom")
	}
	if cfg.Gateway.Auth.Mode != "" && !slices.Contains(validAuthModes, cfg.Gateway.Auth.Mode) {
		add("gateway.auth.mode", "must be one of %v, got %q", validAuthModes, cfg.Gateway.Auth.Mode)
	}
	if cfg.Gateway.TLS.Enabled && (cfg.Gateway.TLS.CertPath == "" || cfg.Gateway.TLS.KeyPath == "") {
		add("gateway.tls", "certPath and keyPath are required when TLS is enabled")
	}

	// Workspace
	if cfg.Workspace.MaxUploadBytes < 0 {
		add("workspace.maxUploadBytes", "must not be negative")
	}
	if cfg.Workspace.MaxDepth < -1 {
		add("workspace.maxDepth", "must be -1 (unlimited) or greater, got %d", cfg.Workspace.MaxDepth)
	}
	if cfg.Workspace.DebounceMs < 0 {
		add("workspace.debounceMs", "must not be negative")
	}
	if cfg.Workspace.LockTimeoutSeconds < 0 {
		add("workspace.lockTimeoutSeconds", "must not be negative")
	}

	// Upload
	if cfg.Upload.RatePerMinute < 0 {
		add("upload.ratePerMinute", "must not be negative")
	}
	if cfg.Upload.Burst < 0 {
		add("upload.burst", "must not be negative")
	}

	// Presets
	labels := map[string]bool{}
	for i, p := range cfg.Presets.Predefined {
		path := fmt.Sprintf("presets.predefined[%d]", i)
		if strings.TrimSpace(p.Label) == "" {
			add(path+".label", "label is required")
		} else if labels[p.Label] {
			add(path+".label", "duplicate label %q", p.Label)
		}
		labels[p.Label] = true
		if strings.TrimSpace(p.Query) == "" {
			add(path+".query", "query is required")
		}
		if p.Mode != "" && !slices.Contains(validModes, p.Mode) {
			add(path+".mode", "must be one of %v, got %q", validModes, p.Mode)
		}
		if (p.Mode == "orchestrator" || p.Mode == "workflow") && p.Folder == "" {
			add(path+".folder", "required for %s mode", p.Mode)
		}
	}

	// Logging
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		add("logging.level", "must be one of %v, got %q", validLogLevels, cfg.Logging.Level)
	}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		add("logging.consoleStyle", "must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle)
	}

	// Hooks
	for event, entries := range cfg.Hooks.ByEvent() {
		for i, h := range entries {
			if strings.TrimSpace(h.Command) == "" {
				add(fmt.Sprintf("hooks.%s[%d].command", event, i), "command is required")
			}
			if h.Timeout < 0 {
				add(fmt.Sprintf("hooks.%s[%d].timeout", event, i), "must not be negative")
			}
		}
	}

	// Telemetry
	if cfg.Telemetry.SampleRatio < 0 || cfg.Telemetry.SampleRatio > 1 {
		add("telemetry.sampleRatio", "must be between 0 and 1, got %v", cfg.Telemetry.SampleRatio)
	}

	return issues
}
