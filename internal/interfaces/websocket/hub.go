// Package websocket streams committed workflow events to connected clients.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rpma/ppf-workflow/internal/application/dispatcher"
	"github.com/rpma/ppf-workflow/internal/domain/event"
)

// HandlerName is the dispatcher registration name of the hub
const HandlerName = "realtime-hub"

const maxClientMessage = 512

// HubConfig holds configuration for the realtime hub
type HubConfig struct {
	// AllowedOrigins lists accepted Origin headers. Empty accepts any origin.
	AllowedOrigins []string

	// SendBuffer is the number of queued messages after which a client is dropped
	SendBuffer   int
	WriteTimeout time.Duration
	PingInterval time.Duration
}

// DefaultHubConfig returns default hub configuration
func DefaultHubConfig() HubConfig {
	return HubConfig{
		SendBuffer:   64,
		WriteTimeout: 10 * time.Second,
		PingInterval: 30 * time.Second,
	}
}

// Hub fans published events out to websocket clients. A client that cannot
// keep up is disconnected; publishing never waits on a client.
type Hub struct {
	cfg        HubConfig
	dispatcher dispatcher.Dispatcher
	upgrader   websocket.Upgrader
	logger     *zap.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once

	// optional filters from the connection query string
	interventionID string
	taskID         string
}

func (c *client) wants(evt *event.Event) bool {
	if c.interventionID != "" && c.interventionID != evt.InterventionID {
		return false
	}
	if c.taskID != "" && c.taskID != evt.TaskID {
		return false
	}
	return true
}

// NewHub creates a hub and subscribes it to every event on d
func NewHub(cfg HubConfig, d dispatcher.Dispatcher, logger *zap.Logger) *Hub {
	defaults := DefaultHubConfig()
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaults.SendBuffer
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaults.PingInterval
	}

	h := &Hub{
		cfg:        cfg,
		dispatcher: d,
		logger:     logger,
		clients:    make(map[*client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}

	if d != nil {
		d.SubscribeAll(HandlerName, h.Broadcast)
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// ServeHTTP upgrades the request and registers the connection.
// Query parameters intervention_id and task_id narrow the stream.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.Error(err), zap.String("remote", r.RemoteAddr))
		return
	}

	c := &client{
		conn:           conn,
		send:           make(chan []byte, h.cfg.SendBuffer),
		interventionID: r.URL.Query().Get("intervention_id"),
		taskID:         r.URL.Query().Get("task_id"),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("Realtime client connected",
		zap.String("remote", r.RemoteAddr),
		zap.String("intervention_id", c.interventionID),
		zap.String("task_id", c.taskID),
		zap.Int("clients", count))

	go h.writePump(c)
	go h.readPump(c)
}

// Broadcast queues evt for every interested client. It is registered as a
// dispatcher handler and never blocks.
func (h *Hub) Broadcast(ctx context.Context, evt *event.Event) error {
	msg, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		if !c.wants(evt) {
			continue
		}
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("Dropping slow realtime client", zap.String("event_id", evt.ID))
		h.remove(c)
	}
	return nil
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close unsubscribes the hub and disconnects every client
func (h *Hub) Close() error {
	if h.dispatcher != nil {
		h.dispatcher.Unsubscribe("", HandlerName)
	}

	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.remove(c)
	}
	return nil
}

// remove detaches c. Closing send makes the write pump close the connection.
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()

	c.once.Do(func() { close(c.send) })
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.remove(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		}
	}
}

// readPump discards client messages and notices disconnects
func (h *Hub) readPump(c *client) {
	defer h.remove(c)

	c.conn.SetReadLimit(maxClientMessage)
	pongWait := 2 * h.cfg.PingInterval
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("Realtime client read error", zap.Error(err))
			}
			return
		}
	}
}
