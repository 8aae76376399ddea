package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigPath(t *testing.T) {
	tests := []struct {
		in   string
		want []string
		err  string
	}{
		{in: "workspace", want: []string{"workspace"}},
		{in: "workspace.debounceMs", want: []string{"workspace", "debounceMs"}},
		{in: "gateway.auth.mode", want: []string{"gateway", "auth", "mode"}},
		{in: "", err: "config: empty config path"},
		{in: "upload..burst", err: "config: upload..burst: config path contains empty segment"},
		{in: "telemetry.", err: "config: telemetry.: config path contains empty segment"},
		{in: "logging.log level", err: "whitespace"},
		{in: "mcp/configPath", err: "slash"},
		{in: "agents.default", err: "config: agents.default: unknown config section agents"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseConfigPath(tt.in)
			if tt.err != "" {
				var ce *ConfigError
				require.ErrorAs(t, err, &ce)
				assert.Contains(t, err.Error(), tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func rawDoc() map[string]any {
	return map[string]any{
		"workspace": map[string]any{
			"docsDir":    "~/notes",
			"debounceMs": 250,
		},
		"store": "not-a-map",
	}
}

func TestGetValueAtPath(t *testing.T) {
	doc := rawDoc()

	v, ok := GetValueAtPath(doc, []string{"workspace", "debounceMs"})
	require.True(t, ok)
	assert.Equal(t, 250, v)

	v, ok = GetValueAtPath(doc, []string{"workspace"})
	require.True(t, ok)
	assert.IsType(t, map[string]any{}, v)

	for _, path := range [][]string{{"upload"}, {"workspace", "maxDepth"}, {"store", "path"}} {
		_, ok := GetValueAtPath(doc, path)
		assert.False(t, ok, path)
	}
}

func TestSetValueAtPath(t *testing.T) {
	doc := rawDoc()

	SetValueAtPath(doc, []string{"workspace", "debounceMs"}, 500)
	SetValueAtPath(doc, []string{"upload", "ratePerMinute"}, 30)
	SetValueAtPath(doc, []string{"store", "path"}, "/tmp/wb.db")

	assert.Equal(t, map[string]any{"docsDir": "~/notes", "debounceMs": 500}, doc["workspace"])
	assert.Equal(t, map[string]any{"ratePerMinute": 30}, doc["upload"])
	assert.Equal(t, map[string]any{"path": "/tmp/wb.db"}, doc["store"])
}

func TestUnsetValueAtPath(t *testing.T) {
	doc := rawDoc()

	assert.True(t, UnsetValueAtPath(doc, []string{"workspace", "debounceMs"}))
	assert.Equal(t, map[string]any{"docsDir": "~/notes"}, doc["workspace"])

	assert.False(t, UnsetValueAtPath(doc, []string{"workspace", "debounceMs"}))
	assert.False(t, UnsetValueAtPath(doc, []string{"upload", "burst"}))
	assert.False(t, UnsetValueAtPath(doc, []string{"store", "path"}))
	assert.Equal(t, "not-a-map", doc["store"])
}

func TestResolvePaths_Default(t *testing.T) {
	t.Setenv("WORKBENCH_HOME", "")

	paths, err := ResolvePaths()
	require.NoError(t, err)

	home, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(home, ".workbench"), paths.Base)
	assert.Equal(t, filepath.Join(home, ".workbench", "config.yaml"), paths.Config)
	assert.Equal(t, filepath.Join(home, ".workbench", "workspace"), paths.Workspace)
}

func TestResolvePaths_CustomHome(t *testing.T) {
	t.Setenv("WORKBENCH_HOME", "/tmp/wbtest")

	paths, err := ResolvePaths()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/wbtest", paths.Base)
	assert.Equal(t, "/tmp/wbtest/config.yaml", paths.Config)
	assert.Equal(t, "/tmp/wbtest/.env", paths.DotEnv)
	assert.Equal(t, "/tmp/wbtest/workspace", paths.Workspace)
	assert.Equal(t, "/tmp/wbtest/logs", paths.Logs)
	assert.Equal(t, "/tmp/wbtest/data", paths.Data)
}

func TestEnsureDirs(t *testing.T) {
	t.Setenv("WORKBENCH_HOME", t.TempDir())

	paths, err := ResolvePaths()
	require.NoError(t, err)
	require.NoError(t, paths.EnsureDirs())
	require.NoError(t, paths.EnsureDirs())

	for _, d := range []string{paths.Base, paths.Workspace, paths.Logs, paths.Data} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestFill(t *testing.T) {
	paths := Paths{Base: "/wb", Workspace: "/wb/workspace", Logs: "/wb/logs", Data: "/wb/data"}

	cfg := Defaults()
	cfg.Logging.File = "workbench.log"
	paths.Fill(&cfg)

	assert.Equal(t, "/wb/workspace", cfg.Workspace.DocsDir)
	assert.Equal(t, "/wb/data/workbench.db", cfg.Store.Path)
	assert.Equal(t, "/wb/mcp_servers.json", cfg.MCP.ConfigPath)
	assert.Equal(t, "/wb/logs/workbench.log", cfg.Logging.File)

	cfg = Defaults()
	cfg.Workspace.DocsDir = "/elsewhere"
	paths.Fill(&cfg)
	assert.Equal(t, "/elsewhere", cfg.Workspace.DocsDir)
}

func TestFill_ExpandsHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	cfg := Defaults()
	cfg.Workspace.DocsDir = "~/notes"
	Paths{}.Fill(&cfg)
	assert.Equal(t, filepath.Join(home, "notes"), cfg.Workspace.DocsDir)
}
