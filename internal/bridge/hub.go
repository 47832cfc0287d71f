// Package bridge connects the daemon to the browser shim over HTTP and WebSocket.
package bridge

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/verte-zerg/leetgulag/internal/enforce"
	"github.com/verte-zerg/leetgulag/internal/model"
)

// ErrNoClients is returned when no shim is connected to receive a frame.
var ErrNoClients = errors.New("no browser connected")

// ErrUnknownTab is returned when the shim has not reported an active tab.
var ErrUnknownTab = errors.New("active tab unknown")

// Frame types pushed to the shim.
const (
	FrameRules    = "rules"
	FrameMessage  = "message"
	FrameNavigate = "navigate"
	FrameWatch    = "watch"
)

// Frame is one message pushed to the shim.
type Frame struct {
	Type     string         `json:"type"`
	Rules    []enforce.Rule `json:"rules,omitempty"`
	Message  *model.Message `json:"message,omitempty"`
	URL      string         `json:"url,omitempty"`
	Patterns []string       `json:"patterns,omitempty"`
}

const sendBuffer = 16

type client struct {
	conn *websocket.Conn
	send chan Frame
}

// Hub tracks connected shims and the browser state they report.
type Hub struct {
	logger *slog.Logger

	mu        sync.Mutex
	clients   map[*client]struct{}
	rules     []enforce.Rule
	watches   map[string]struct{}
	activeURL string
}

// NewHub returns an empty Hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:  logger,
		clients: make(map[*client]struct{}),
		watches: make(map[string]struct{}),
	}
}

// Clients returns the number of connected shims.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// RulesChanged pushes the rule set to every shim.
func (h *Hub) RulesChanged(rules []enforce.Rule) {
	h.mu.Lock()
	h.rules = append([]enforce.Rule(nil), rules...)
	h.mu.Unlock()
	h.broadcast(Frame{Type: FrameRules, Rules: rules})
}

// Send delivers a UI message.
func (h *Hub) Send(_ context.Context, msg model.Message) error {
	if h.broadcast(Frame{Type: FrameMessage, Message: &msg}) == 0 {
		return ErrNoClients
	}
	return nil
}

// Navigate points the active tab at url.
func (h *Hub) Navigate(_ context.Context, url string) error {
	if h.broadcast(Frame{Type: FrameNavigate, URL: url}) == 0 {
		return ErrNoClients
	}
	return nil
}

// SetActiveURL records the active tab reported by the shim.
func (h *Hub) SetActiveURL(url string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.activeURL = url
}

// ActiveURL returns the last reported active tab URL.
func (h *Hub) ActiveURL(context.Context) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.activeURL == "" {
		return "", ErrUnknownTab
	}
	return h.activeURL, nil
}

// Watch asks the shim to forward completion events matching pattern.
func (h *Hub) Watch(pattern string) {
	h.mu.Lock()
	h.watches[pattern] = struct{}{}
	patterns := h.patternsLocked()
	h.mu.Unlock()
	h.broadcast(Frame{Type: FrameWatch, Patterns: patterns})
}

// Unwatch stops forwarding completion events matching pattern.
func (h *Hub) Unwatch(pattern string) {
	h.mu.Lock()
	delete(h.watches, pattern)
	patterns := h.patternsLocked()
	h.mu.Unlock()
	h.broadcast(Frame{Type: FrameWatch, Patterns: patterns})
}

// Patterns returns the watched completion patterns.
func (h *Hub) Patterns() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.patternsLocked()
}

func (h *Hub) patternsLocked() []string {
	patterns := make([]string, 0, len(h.watches))
	for p := range h.watches {
		patterns = append(patterns, p)
	}
	sort.Strings(patterns)
	return patterns
}

// broadcast queues f for every client and returns how many received it.
func (h *Hub) broadcast(f Frame) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for c := range h.clients {
		select {
		case c.send <- f:
			n++
		default:
			h.logger.Warn("dropping frame for slow client", "type", f.Type)
		}
	}
	return n
}

// serve registers conn and pumps frames until it closes.
func (h *Hub) serve(conn *websocket.Conn) {
	c := &client{conn: conn, send: make(chan Frame, sendBuffer)}

	h.mu.Lock()
	c.send <- Frame{Type: FrameRules, Rules: h.rules}
	c.send <- Frame{Type: FrameWatch, Patterns: h.patternsLocked()}
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Info("browser connected", "remote", conn.RemoteAddr().String())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for f := range c.send {
			if err := conn.WriteJSON(f); err != nil {
				h.logger.Warn("failed to write frame", "error", err)
				return
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	delete(h.clients, c)
	close(c.send)
	h.mu.Unlock()
	<-done
	if err := conn.Close(); err != nil {
		h.logger.Debug("failed to close websocket", "error", err)
	}
	h.logger.Info("browser disconnected")
}

// Close disconnects every shim.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if err := c.conn.Close(); err != nil {
			h.logger.Debug("failed to close websocket", "error", err)
		}
	}
}
