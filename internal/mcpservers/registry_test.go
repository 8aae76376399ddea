package mcpservers

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/soyeahso/workbench/internal/domain"
	"github.com/soyeahso/workbench/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseConfig = `{
  "mcpServers": {
    "filesystem": {"command": "npx", "args": ["-y", "@modelcontextprotocol/server-filesystem"], "description": "Local files"},
    "search": {"url": "https://search.example.com/sse"},
    "planner": {"command": "planner-mcp"}
  }
}`

func testRegistry(t *testing.T, base string) *Registry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mcp_servers.json")
	if base != "" {
		require.NoError(t, os.WriteFile(path, []byte(base), 0o644))
	}
	r := New(path, logging.New(nil, "silent"))
	require.NoError(t, r.Load())
	return r
}

func TestUserPath(t *testing.T) {
	assert.Equal(t, "/etc/wb/mcp_servers_user.json", UserPath("/etc/wb/mcp_servers.json"))
	assert.Equal(t, "/etc/wb/servers_user.json", UserPath("/etc/wb/servers"))
}

func TestLoad(t *testing.T) {
	r := testRegistry(t, baseConfig)

	assert.Equal(t, []string{"filesystem", "planner", "search"}, r.Names())
	fs, err := r.Get("filesystem")
	require.NoError(t, err)
	assert.Equal(t, "npx", fs.Command)
	assert.Equal(t, SourceBase, fs.Source)
	assert.Equal(t, "Local files", fs.Description)

	search, err := r.Get("search")
	require.NoError(t, err)
	assert.Equal(t, "sse", search.Transport())

	_, err = r.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, r.Contains("planner"))
	assert.False(t, r.Contains("missing"))
}

func TestLoad_MissingFiles(t *testing.T) {
	r := testRegistry(t, "")
	assert.Empty(t, r.List())
	assert.Empty(t, r.Names())
}

func TestLoad_BadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mcp.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	r := New(path, logging.New(nil, "silent"))
	assert.Error(t, r.Load())
}

func TestUserOverridesBase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mcp_servers.json")
	require.NoError(t, os.WriteFile(path, []byte(baseConfig), 0o644))
	require.NoError(t, os.WriteFile(UserPath(path), []byte(`{"mcpServers":{"planner":{"command":"planner-v2"}}}`), 0o644))

	r := New(path, logging.New(nil, "silent"))
	require.NoError(t, r.Load())

	p, err := r.Get("planner")
	require.NoError(t, err)
	assert.Equal(t, "planner-v2", p.Command)
	assert.Equal(t, SourceUser, p.Source)
	assert.Len(t, r.List(), 3)
}

func TestAddUser(t *testing.T) {
	r := testRegistry(t, baseConfig)

	s, err := r.AddUser(domain.MCPServer{Name: " weather ", URL: "https://weather.example.com/mcp"})
	require.NoError(t, err)
	assert.Equal(t, "weather", s.Name)
	assert.Equal(t, SourceUser, s.Source)
	assert.True(t, r.Contains("weather"))

	data, err := os.ReadFile(r.userPath)
	require.NoError(t, err)
	var f file
	require.NoError(t, json.Unmarshal(data, &f))
	assert.Equal(t, "https://weather.example.com/mcp", f.MCPServers["weather"].URL)

	reloaded := New(r.basePath, logging.New(nil, "silent"))
	require.NoError(t, reloaded.Load())
	assert.Equal(t, r.List(), reloaded.List())
}

func TestAddUser_Invalid(t *testing.T) {
	r := testRegistry(t, baseConfig)

	_, err := r.AddUser(domain.MCPServer{})
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = r.AddUser(domain.MCPServer{Name: "x"})
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = r.AddUser(domain.MCPServer{Name: "x", Protocol: "sse"})
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = r.AddUser(domain.MCPServer{Name: "x", Protocol: "grpc", URL: "h"})
	assert.ErrorIs(t, err, ErrInvalid)

	assert.NoFileExists(t, r.userPath)
}

func TestRemoveUser(t *testing.T) {
	r := testRegistry(t, baseConfig)
	_, err := r.AddUser(domain.MCPServer{Name: "local", Command: "local-mcp"})
	require.NoError(t, err)

	require.NoError(t, r.RemoveUser("local"))
	assert.False(t, r.Contains("local"))

	assert.ErrorIs(t, r.RemoveUser("filesystem"), ErrBaseServer)
	assert.ErrorIs(t, r.RemoveUser("nope"), ErrNotFound)
}

func TestRemoveUser_RevealsBase(t *testing.T) {
	r := testRegistry(t, baseConfig)
	_, err := r.AddUser(domain.MCPServer{Name: "planner", Command: "mine"})
	require.NoError(t, err)

	require.NoError(t, r.RemoveUser("planner"))
	p, err := r.Get("planner")
	require.NoError(t, err)
	assert.Equal(t, "planner-mcp", p.Command)
	assert.Equal(t, SourceBase, p.Source)
}

func TestReload(t *testing.T) {
	r := testRegistry(t, baseConfig)
	require.NoError(t, os.WriteFile(r.basePath, []byte(`{"mcpServers":{"only":{"command":"x"}}}`), 0o644))
	require.NoError(t, r.Reload())
	assert.Equal(t, []string{"only"}, r.Names())
}
