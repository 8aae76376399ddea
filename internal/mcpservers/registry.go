// Package mcpservers manages the MCP servers offered for selection. Servers
// come from a base JSON file in the {"mcpServers": {...}} format plus a
// sibling "_user.json" file that holds user additions. User entries
// override base entries of the same name.
package mcpservers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/soyeahso/workbench/internal/domain"
	"github.com/soyeahso/workbench/internal/logging"
)

const (
	SourceBase = "base"
	SourceUser = "user"
)

var (
	ErrNotFound   = errors.New("mcp server not found")
	ErrBaseServer = errors.New("base servers cannot be removed")
	ErrInvalid    = errors.New("invalid mcp server")
)

// entry is the on-disk form of a server, keyed by name in the file.
type entry struct {
	Command     string            `json:"command,omitempty"`
	Args        []string          `json:"args,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
	Description string            `json:"description,omitempty"`
	Protocol    string            `json:"protocol,omitempty"`
	URL         string            `json:"url,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
}

type file struct {
	MCPServers map[string]entry `json:"mcpServers"`
}

// Registry is the merged view of base and user servers. It is safe for
// concurrent use.
type Registry struct {
	basePath string
	userPath string
	log      *logging.Logger

	mu      sync.RWMutex
	base    map[string]entry
	user    map[string]entry
	servers map[string]domain.MCPServer
}

// New creates a registry for the base config at path. Call Load before use.
func New(path string, log *logging.Logger) *Registry {
	return &Registry{
		basePath: path,
		userPath: UserPath(path),
		log:      log.Sub("mcp"),
		servers:  map[string]domain.MCPServer{},
	}
}

// UserPath returns the user additions file for a base config path.
func UserPath(base string) string {
	ext := filepath.Ext(base)
	if ext == "" {
		return base + "_user.json"
	}
	return strings.TrimSuffix(base, ext) + "_user" + ext
}

// Load reads both files. Missing files are treated as empty.
func (r *Registry) Load() error {
	base, err := readFile(r.basePath)
	if err != nil {
		return fmt.Errorf("loading mcp config: %w", err)
	}
	user, err := readFile(r.userPath)
	if err != nil {
		return fmt.Errorf("loading user mcp config: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.base, r.user = base, user
	r.merge()
	r.log.Info().
		Int("base", len(base)).
		Int("user", len(user)).
		Int("total", len(r.servers)).
		Msg("mcp servers loaded")
	return nil
}

// Reload re-reads the configuration files.
func (r *Registry) Reload() error { return r.Load() }

func (r *Registry) merge() {
	r.servers = make(map[string]domain.MCPServer, len(r.base)+len(r.user))
	for name, e := range r.base {
		r.servers[name] = e.server(name, SourceBase)
	}
	for name, e := range r.user {
		r.servers[name] = e.server(name, SourceUser)
	}
}

// List returns all servers sorted by name.
func (r *Registry) List() []domain.MCPServer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.MCPServer, 0, len(r.servers))
	for _, s := range r.servers {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b domain.MCPServer) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Names returns the sorted server names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.servers))
	for name := range r.servers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Get returns the named server.
func (r *Registry) Get(name string) (domain.MCPServer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.servers[name]
	if !ok {
		return domain.MCPServer{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return s, nil
}

// Contains reports whether a server with the name exists.
func (r *Registry) Contains(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.servers[name]
	return ok
}

// AddUser adds or replaces a user server and persists the user file.
func (r *Registry) AddUser(s domain.MCPServer) (domain.MCPServer, error) {
	s.Name = strings.TrimSpace(s.Name)
	if err := Validate(s); err != nil {
		return domain.MCPServer{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	user := make(map[string]entry, len(r.user)+1)
	for k, v := range r.user {
		user[k] = v
	}
	user[s.Name] = entryOf(s)
	if err := writeFile(r.userPath, user); err != nil {
		return domain.MCPServer{}, err
	}
	r.user = user
	r.merge()
	r.log.Info().Str("name", s.Name).Str("transport", s.Transport()).Msg("user mcp server saved")
	return r.servers[s.Name], nil
}

// RemoveUser deletes a user server and persists the user file. Servers that
// exist only in the base config cannot be removed.
func (r *Registry) RemoveUser(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.user[name]; !ok {
		if _, ok := r.base[name]; ok {
			return fmt.Errorf("%w: %s", ErrBaseServer, name)
		}
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	user := make(map[string]entry, len(r.user))
	for k, v := range r.user {
		if k != name {
			user[k] = v
		}
	}
	if err := writeFile(r.userPath, user); err != nil {
		return err
	}
	r.user = user
	r.merge()
	r.log.Info().Str("name", name).Msg("user mcp server removed")
	return nil
}

// Validate checks that a server has a name and what its transport needs.
func Validate(s domain.MCPServer) error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	switch t := s.Transport(); t {
	case "stdio":
		if strings.TrimSpace(s.Command) == "" {
			return fmt.Errorf("%w: %s: command is required for stdio servers", ErrInvalid, s.Name)
		}
	case "sse", "http":
		if strings.TrimSpace(s.URL) == "" {
			return fmt.Errorf("%w: %s: url is required for %s servers", ErrInvalid, s.Name, t)
		}
	default:
		return fmt.Errorf("%w: %s: unknown protocol %q", ErrInvalid, s.Name, t)
	}
	return nil
}

func (e entry) server(name, source string) domain.MCPServer {
	return domain.MCPServer{
		Name:        name,
		Command:     e.Command,
		Args:        e.Args,
		Env:         e.Env,
		Description: e.Description,
		Protocol:    e.Protocol,
		URL:         e.URL,
		Headers:     e.Headers,
		Source:      source,
	}
}

func entryOf(s domain.MCPServer) entry {
	return entry{
		Command:     s.Command,
		Args:        s.Args,
		Env:         s.Env,
		Description: s.Description,
		Protocol:    s.Protocol,
		URL:         s.URL,
		Headers:     s.Headers,
	}
}

func readFile(path string) (map[string]entry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]entry{}, nil
	}
	if err != nil {
		return nil, err
	}
	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if f.MCPServers == nil {
		f.MCPServers = map[string]entry{}
	}
	return f.MCPServers, nil
}

func writeFile(path string, servers map[string]entry) error {
	data, err := json.MarshalIndent(file{MCPServers: servers}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding user mcp config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing user mcp config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing user mcp config: %w", err)
	}
	return nil
}
