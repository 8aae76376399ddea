package config

// Config is the root configuration for Workbench.
type Config struct {
	Gateway   GatewayConfig   `yaml:"gateway,omitempty"`
	Workspace WorkspaceConfig `yaml:"workspace,omitempty"`
	Store     StoreConfig     `yaml:"store,omitempty"`
	MCP       MCPConfig       `yaml:"mcp,omitempty"`
	Presets   PresetsConfig   `yaml:"presets,omitempty"`
	Upload    UploadConfig    `yaml:"upload,omitempty"`
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
	Hooks     HooksConfig     `yaml:"hooks,omitempty"`
	Telemetry TelemetryConfig `yaml:"telemetry,omitempty"`
}

// GatewayConfig controls the gateway HTTP/WebSocket server.
type GatewayConfig struct {
	Port           int              `yaml:"port,omitempty"`
	Bind           string           `yaml:"bind,omitempty"` // "auto" | "lan" | "loopback" | "custom"
	CustomBindHost string           `yaml:"customBindHost,omitempty"`
	URL            string           `yaml:"url,omitempty"` // base URL used by CLI commands
	Auth           GatewayAuth      `yaml:"auth,omitempty"`
	TLS            GatewayTLS       `yaml:"tls,omitempty"`
	ControlUI      GatewayControlUI `yaml:"controlUi,omitempty"`
}

// GatewayAuth configures gateway authentication.
type GatewayAuth struct {
	Mode     string `yaml:"mode,omitempty"` // "token" | "password"
	Token    string `yaml:"token,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// GatewayTLS configures TLS for the gateway.
type GatewayTLS struct {
	Enabled  bool   `yaml:"enabled,omitempty"`
	CertPath string `yaml:"certPath,omitempty"`
	KeyPath  string `yaml:"keyPath,omitempty"`
}

// GatewayControlUI configures the browser front end served against the API.
type GatewayControlUI struct {
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
}

// WorkspaceConfig configures the document workspace.
type WorkspaceConfig struct {
	DocsDir            string `yaml:"docsDir,omitempty"`
	MaxUploadBytes     int64  `yaml:"maxUploadBytes,omitempty"`
	MaxDepth           int    `yaml:"maxDepth,omitempty"` // -1 for unlimited
	Watch              *bool  `yaml:"watch,omitempty"`
	DebounceMs         int    `yaml:"debounceMs,omitempty"`
	LockTimeoutSeconds int    `yaml:"lockTimeoutSeconds,omitempty"`
}

// WatchEnabled reports whether the filesystem watcher should run. It
// defaults to on.
func (w WorkspaceConfig) WatchEnabled() bool {
	return w.Watch == nil || *w.Watch
}

// StoreConfig configures the SQLite database.
type StoreConfig struct {
	Path string `yaml:"path,omitempty"`
}

// MCPConfig points at the MCP server definitions.
type MCPConfig struct {
	ConfigPath string `yaml:"configPath,omitempty"`
}

// PresetsConfig lists presets seeded into the store at startup.
type PresetsConfig struct {
	Predefined []PresetEntry `yaml:"predefined,omitempty"`
}

// PresetEntry is a predefined preset.
type PresetEntry struct {
	Label   string   `yaml:"label"`
	Query   string   `yaml:"query"`
	Servers []string `yaml:"servers,omitempty"`
	Folder  string   `yaml:"folder,omitempty"`
	Mode    string   `yaml:"mode,omitempty"`
}

// UploadConfig throttles uploads per client address.
type UploadConfig struct {
	RatePerMinute int `yaml:"ratePerMinute,omitempty"`
	Burst         int `yaml:"burst,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "compact" | "json"
}

// HooksConfig maps lifecycle events to shell commands.
type HooksConfig struct {
	WorkspaceChanged []HookEntry `yaml:"workspaceChanged,omitempty"`
	FileUploaded     []HookEntry `yaml:"fileUploaded,omitempty"`
	PresetSaved      []HookEntry `yaml:"presetSaved,omitempty"`
	SessionStart     []HookEntry `yaml:"sessionStart,omitempty"`
	SessionEnd       []HookEntry `yaml:"sessionEnd,omitempty"`
	GatewayStart     []HookEntry `yaml:"gatewayStart,omitempty"`
	GatewayStop      []HookEntry `yaml:"gatewayStop,omitempty"`
}

// ByEvent returns the configured commands keyed by hook event name.
func (h HooksConfig) ByEvent() map[string][]HookEntry {
	return map[string][]HookEntry{
		"workspace_changed": h.WorkspaceChanged,
		"file_uploaded":     h.FileUploaded,
		"preset_saved":      h.PresetSaved,
		"session_start":     h.SessionStart,
		"session_end":       h.SessionEnd,
		"gateway_start":     h.GatewayStart,
		"gateway_stop":      h.GatewayStop,
	}
}

// HookEntry defines a single hook action.
type HookEntry struct {
	Command string `yaml:"command"`
	Timeout int    `yaml:"timeout,omitempty"` // milliseconds
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	OTLPEndpoint string  `yaml:"otlpEndpoint,omitempty"`
	ServiceName  string  `yaml:"serviceName,omitempty"`
	Insecure     bool    `yaml:"insecure,omitempty"`
	SampleRatio  float64 `yaml:"sampleRatio,omitempty"`
}
