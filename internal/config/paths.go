package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const defaultBaseDir = ".workbench"

// Paths holds resolved filesystem paths for Workbench data.
type Paths struct {
	Base      string // ~/.workbench
	Config    string // ~/.workbench/config.yaml
	DotEnv    string // ~/.workbench/.env
	Workspace string // ~/.workbench/workspace
	Logs      string // ~/.workbench/logs
	Data      string // ~/.workbench/data
}

// ResolvePaths computes all standard paths from the home directory.
// If WORKBENCH_HOME is set, it overrides the default base directory.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("WORKBENCH_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}

	return Paths{
		Base:      base,
		Config:    filepath.Join(base, "config.yaml"),
		DotEnv:    filepath.Join(base, ".env"),
		Workspace: filepath.Join(base, "workspace"),
		Logs:      filepath.Join(base, "logs"),
		Data:      filepath.Join(base, "data"),
	}, nil
}

// EnsureDirs creates all standard directories if they don't exist.
func (p Paths) EnsureDirs() error {
	dirs := []string{p.Base, p.Workspace, p.Logs, p.Data}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}

// Fill resolves the path-valued settings left empty in cfg against p.
func (p Paths) Fill(cfg *Config) {
	if cfg.Workspace.DocsDir == "" {
		cfg.Workspace.DocsDir = p.Workspace
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = filepath.Join(p.Data, "workbench.db")
	}
	if cfg.MCP.ConfigPath == "" {
		cfg.MCP.ConfigPath = filepath.Join(p.Base, "mcp_servers.json")
	}
	cfg.Workspace.DocsDir = expandHome(cfg.Workspace.DocsDir)
	cfg.Store.Path = expandHome(cfg.Store.Path)
	cfg.MCP.ConfigPath = expandHome(cfg.MCP.ConfigPath)
	if cfg.Logging.File != "" {
		cfg.Logging.File = expandHome(cfg.Logging.File)
		if !filepath.IsAbs(cfg.Logging.File) {
			cfg.Logging.File = filepath.Join(p.Logs, cfg.Logging.File)
		}
	}
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// sections are the top-level keys of config.yaml.
var sections = []string{"gateway", "workspace", "store", "mcp", "presets", "upload", "logging", "hooks", "telemetry"}

// ParseConfigPath splits a dotted key such as "workspace.debounceMs".
// The first segment must name a config section.
func ParseConfigPath(raw string) ([]string, error) {
	if raw == "" {
		return nil, &ConfigError{Message: "empty config path"}
	}
	parts := strings.Split(raw, ".")
	if slices.Contains(parts, "") {
		return nil, &ConfigError{Message: "config path contains empty segment", Path: raw}
	}
	if strings.ContainsAny(raw, " \t/") {
		return nil, &ConfigError{Message: "config path contains whitespace or a slash", Path: raw}
	}
	if !slices.Contains(sections, parts[0]) {
		return nil, &ConfigError{Message: "unknown config section " + parts[0], Path: raw}
	}
	return parts, nil
}

// GetValueAtPath looks up path in a decoded YAML document.
func GetValueAtPath(root map[string]any, path []string) (any, bool) {
	var cur any = root
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[key]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// parent walks to the map holding the last segment of path. With create
// set, missing or scalar intermediates are replaced by empty maps.
func parent(root map[string]any, path []string, create bool) map[string]any {
	m := root
	for _, key := range path[:len(path)-1] {
		next, ok := m[key].(map[string]any)
		if !ok {
			if !create {
				return nil
			}
			next = map[string]any{}
			m[key] = next
		}
		m = next
	}
	return m
}

// SetValueAtPath stores value at path, creating sections as needed.
func SetValueAtPath(root map[string]any, path []string, value any) {
	parent(root, path, true)[path[len(path)-1]] = value
}

// UnsetValueAtPath deletes the key at path and reports whether it existed.
func UnsetValueAtPath(root map[string]any, path []string) bool {
	m := parent(root, path, false)
	if m == nil {
		return false
	}
	last := path[len(path)-1]
	if _, ok := m[last]; !ok {
		return false
	}
	delete(m, last)
	return true
}
