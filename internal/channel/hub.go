package channel

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/modcoretech/NG-Download-Manager/internal/engine/events"
	"github.com/modcoretech/NG-Download-Manager/internal/relay"
)

const (
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = pongWait * 9 / 10
	sendBufSize = 64
)

// Hub fans relay pushes out to every connected view over websockets
type Hub struct {
	mu       sync.Mutex
	clients  map[string]*wsClient
	upgrader websocket.Upgrader
	logger   *slog.Logger

	// OnConnect returns messages sent to a view right after it connects
	OnConnect func() []any
}

type wsClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

var _ relay.Pusher = (*Hub)(nil)

// NewHub creates an empty hub
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[string]*wsClient),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Push broadcasts msg to every view. Slow views whose buffer is full are dropped.
// It returns relay.ErrNoListeners when nobody is connected.
func (h *Hub) Push(_ context.Context, msg any) error {
	data, err := events.Encode(msg)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients) == 0 {
		return relay.ErrNoListeners
	}
	for id, c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("view too slow, disconnecting", "client", id)
			delete(h.clients, id)
			c.close()
		}
	}
	return nil
}

// Count returns the number of connected views
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeWS upgrades the request and keeps the view registered until it disconnects
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", "err", err)
		return
	}

	c := &wsClient{id: uuid.New().String(), conn: conn, send: make(chan []byte, sendBufSize)}

	if h.OnConnect != nil {
		for _, msg := range h.OnConnect() {
			if data, err := events.Encode(msg); err == nil {
				c.send <- data
			}
		}
	}

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	h.logger.Info("view connected", "client", c.id, "remote_addr", r.RemoteAddr)

	go c.writePump()

	defer func() {
		h.mu.Lock()
		delete(h.clients, c.id)
		h.mu.Unlock()
		c.close()
		h.logger.Info("view disconnected", "client", c.id)
	}()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("WS read error", "err", err)
			}
			return
		}
	}
}

// Close disconnects every view
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		delete(h.clients, id)
		c.close()
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) close() {
	c.once.Do(func() { close(c.send) })
}
