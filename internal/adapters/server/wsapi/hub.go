// Package wsapi pushes committed board changes to websocket subscribers.
package wsapi

import (
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/evanschultz/stageboard/internal/adapters/server/common"
	"github.com/gorilla/websocket"
)

const (
	// sendBuffer bounds queued messages per client before it is dropped.
	sendBuffer = 32
	// writeWait bounds one frame write.
	writeWait = 10 * time.Second
	// pongWait bounds silence from a client before the read loop gives up.
	pongWait = 60 * time.Second
	// pingPeriod must stay below pongWait.
	pingPeriod = pongWait * 9 / 10
)

// Message is one frame sent to subscribers.
type Message struct {
	Type   string               `json:"type"`
	Change *common.Notification `json:"change,omitempty"`
}

// client owns one connection and its outbound queue.
type client struct {
	conn *websocket.Conn
	send chan Message
	once sync.Once
}

// close stops the writer exactly once.
func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// Hub fans board notifications out to connected websocket clients.
type Hub struct {
	upgrader    websocket.Upgrader
	log         *log.Logger
	mu          sync.RWMutex
	clients     map[*client]struct{}
	unsubscribe func()
}

// NewHub subscribes to notifier and returns a hub ready to accept connections.
func NewHub(notifier common.ChangeNotifier, logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	h := &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: sameOrigin,
		},
		log:     logger,
		clients: make(map[*client]struct{}),
	}
	if notifier != nil {
		h.unsubscribe = notifier.Subscribe(h.broadcast)
	}
	return h
}

// Close detaches the hub from its notifier and disconnects every client.
func (h *Hub) Close() {
	if h.unsubscribe != nil {
		h.unsubscribe()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.close()
		delete(h.clients, c)
	}
}

// Clients reports the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades one request and streams notifications until the client leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "err", err, "remote", r.RemoteAddr)
		return
	}
	c := &client{conn: conn, send: make(chan Message, sendBuffer)}
	c.send <- Message{Type: "hello"}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.log.Debug("websocket client connected", "remote", r.RemoteAddr)

	go h.writeLoop(c)
	h.readLoop(c)
}

// broadcast queues n for every client, dropping clients whose queue is full.
func (h *Hub) broadcast(n common.Notification) {
	msg := Message{Type: "change", Change: &n}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.log.Warn("dropping slow websocket client", "remote", c.conn.RemoteAddr())
			c.close()
			delete(h.clients, c)
		}
	}
}

// remove unregisters c and stops its writer.
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

// readLoop drains client frames so control messages are processed.
func (h *Hub) readLoop(c *client) {
	defer h.remove(c)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug("websocket read ended", "err", err)
			}
			return
		}
	}
}

// writeLoop is the only writer for c.conn.
func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				h.log.Debug("websocket write failed", "err", err)
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

// sameOrigin accepts requests without an Origin header or whose origin matches the host.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}
