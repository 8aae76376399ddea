package gateway

import (
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/soyeahso/workbench/internal/logging"
)

// writeTimeout bounds a single frame write so one stalled browser tab
// cannot hold up a broadcast.
const writeTimeout = 10 * time.Second

// Subscription selects which broadcast events a client receives. A nil
// Events set means every event. SessionID, when set, narrows chat.event
// and session.status to that chat session.
type Subscription struct {
	Events    []string `json:"events,omitempty"`
	SessionID string   `json:"sessionId,omitempty"`
}

// wants reports whether an event with payload matches the subscription.
func (s Subscription) wants(event string, payload map[string]any) bool {
	if s.Events != nil && !slices.Contains(s.Events, event) {
		return false
	}
	if s.SessionID == "" {
		return true
	}
	if event != BroadcastChatEvent && event != BroadcastSessionStatus {
		return true
	}
	id, _ := payload["id"].(string)
	sid, _ := payload["session_id"].(string)
	return s.SessionID == id || s.SessionID == sid
}

// Client is an authenticated UI or CLI websocket connection.
type Client struct {
	ConnID      string
	Info        ClientInfo
	Socket      *websocket.Conn
	AuthResult  AuthResult
	ConnectedAt time.Time

	mu     sync.Mutex
	closed bool
	sub    Subscription
	sent   int64
	log    *logging.Logger
}

// NewClient wraps a connection that passed the handshake.
func NewClient(conn *websocket.Conn, info ClientInfo, authResult AuthResult, log *logging.Logger) *Client {
	return &Client{
		ConnID:      uuid.New().String(),
		Info:        info,
		Socket:      conn,
		AuthResult:  authResult,
		ConnectedAt: time.Now(),
		log:         log,
	}
}

// Send writes a frame. Safe for concurrent use.
func (c *Client) Send(frame Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	c.Socket.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.Socket.WriteJSON(frame); err != nil {
		return err
	}
	c.sent++
	return nil
}

// SendEvent sends a named event with payload.
func (c *Client) SendEvent(event string, payload any, seq int64) error {
	f, err := NewEvent(event, payload, seq)
	if err != nil {
		return err
	}
	return c.Send(f)
}

// Respond sends a success response for the given request ID.
func (c *Client) Respond(reqID string, payload any) error {
	f, err := NewResponse(reqID, payload)
	if err != nil {
		return err
	}
	return c.Send(f)
}

// RespondError sends an error response for the given request ID.
func (c *Client) RespondError(reqID string, errShape ErrorShape) error {
	return c.Send(NewErrorResponse(reqID, errShape))
}

// ReadFrame reads the next frame from the websocket.
func (c *Client) ReadFrame() (Frame, error) {
	_, msg, err := c.Socket.ReadMessage()
	if err != nil {
		return Frame{}, err
	}
	return ParseFrame(msg)
}

// Subscribe replaces the client's subscription.
func (c *Client) Subscribe(sub Subscription) {
	if sub.Events != nil {
		sub.Events = slices.Clone(sub.Events)
	}
	c.mu.Lock()
	c.sub = sub
	c.mu.Unlock()
}

// Subscription returns the current subscription.
func (c *Client) Subscription() Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sub
}

func (c *Client) wants(event string, payload map[string]any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && c.sub.wants(event, payload)
}

// Close closes the websocket connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.Socket == nil {
		return nil
	}
	return c.Socket.Close()
}

// ClientSummary describes a connected client in clients.list.
type ClientSummary struct {
	ConnID      string       `json:"connId"`
	ClientID    string       `json:"clientId"`
	Mode        string       `json:"mode,omitempty"`
	Version     string       `json:"version,omitempty"`
	ConnectedAt time.Time    `json:"connectedAt"`
	FramesSent  int64        `json:"framesSent"`
	Sub         Subscription `json:"subscription"`
}

func (c *Client) summary() ClientSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ClientSummary{
		ConnID:      c.ConnID,
		ClientID:    c.Info.ID,
		Mode:        c.Info.Mode,
		Version:     c.Info.Version,
		ConnectedAt: c.ConnectedAt,
		FramesSent:  c.sent,
		Sub:         c.sub,
	}
}

// ClientRegistry tracks connected clients.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*Client // connID → Client
	log     *logging.Logger
}

// NewClientRegistry creates an empty client registry.
func NewClientRegistry(log *logging.Logger) *ClientRegistry {
	return &ClientRegistry{
		clients: make(map[string]*Client),
		log:     log,
	}
}

// Add registers a connected client.
func (r *ClientRegistry) Add(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.ConnID] = c
	r.log.Info().Str("connId", c.ConnID).Str("client", c.Info.ID).Msg("client connected")
}

// Remove unregisters a client by connection ID.
func (r *ClientRegistry) Remove(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[connID]; !ok {
		return
	}
	delete(r.clients, connID)
	r.log.Info().Str("connId", connID).Msg("client disconnected")
}

// Get returns a client by connection ID.
func (r *ClientRegistry) Get(connID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[connID]
	return c, ok
}

// Count returns the number of connected clients.
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// List summarizes the connected clients, oldest first.
func (r *ClientRegistry) List() []ClientSummary {
	r.mu.RLock()
	out := make([]ClientSummary, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c.summary())
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].ConnectedAt.Equal(out[j].ConnectedAt) {
			return out[i].ConnID < out[j].ConnID
		}
		return out[i].ConnectedAt.Before(out[j].ConnectedAt)
	})
	return out
}

func (r *ClientRegistry) snapshot() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out
}

// Broadcast sends an event to every client subscribed to it and returns
// how many received it. Clients whose write fails are closed and dropped.
func (r *ClientRegistry) Broadcast(event string, payload map[string]any, seq int64) int {
	delivered := 0
	for _, c := range r.snapshot() {
		if !c.wants(event, payload) {
			continue
		}
		if err := c.SendEvent(event, payload, seq); err != nil {
			r.log.Warn().Err(err).Str("connId", c.ConnID).Str("event", event).Msg("broadcast send failed, dropping client")
			c.Close()
			r.Remove(c.ConnID)
			continue
		}
		delivered++
	}
	return delivered
}

// CloseAll closes all connected clients.
func (r *ClientRegistry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.clients {
		c.Close()
		delete(r.clients, id)
	}
}
