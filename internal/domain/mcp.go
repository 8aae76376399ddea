package domain

import "strings"

// MCPServer describes an MCP server offered in the server selector.
type MCPServer struct {
	Name        string            `json:"name"`
	Command     string            `json:"command,omitempty"`
	Args        []string          `json:"args,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
	Description string            `json:"description,omitempty"`
	Protocol    string            `json:"protocol,omitempty"` // stdio | sse | http
	URL         string            `json:"url,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Source      string            `json:"source,omitempty"` // base | user
}

// Transport returns the protocol. Without an explicit protocol, a URL
// containing /sse means sse, any other http(s) URL means http, and
// everything else is stdio.
func (s MCPServer) Transport() string {
	switch {
	case s.Protocol != "":
		return s.Protocol
	case strings.Contains(s.URL, "/sse"):
		return "sse"
	case strings.HasPrefix(s.URL, "http://"), strings.HasPrefix(s.URL, "https://"):
		return "http"
	}
	return "stdio"
}
