package realtime

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/emelmujiro/offline-gateway/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10

	defaultBufferSize = 16
)

// Message is a JSON payload delivered to connected application windows.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type controlMessage struct {
	Event string `json:"event"`
	URL   string `json:"url"`
}

// Window describes one connected application window.
type Window struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type connection struct {
	id   string
	conn *websocket.Conn
	send chan Message

	mu  sync.Mutex
	url string
}

// Hub tracks open application windows and pushes notification events to
// them. Windows register over a WebSocket and report their current location
// so notification clicks can be routed to an already-open window.
type Hub struct {
	mu       sync.RWMutex
	windows  map[string]*connection
	order    []string
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewHub constructs a window hub.
func NewHub() *Hub {
	return &Hub{
		windows: make(map[string]*connection),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				originHost := hostWithoutPort(origin)
				requestHost := hostWithoutPort(r.Host)
				return originHost == requestHost || isLoopback(originHost)
			},
		},
		log: logger.WithModule("realtime"),
	}
}

// Serve upgrades the HTTP connection and registers the window. The window's
// initial location arrives via the url query parameter; later navigations
// arrive as {"event":"navigate","url":...} messages.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	cl := &connection{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan Message, defaultBufferSize),
		url:  r.URL.Query().Get("url"),
	}

	h.register(cl)
	defer h.unregister(cl)

	go cl.writeLoop()
	cl.readLoop(h)
}

// Windows returns a snapshot of connected windows in registration order.
func (h *Hub) Windows() []Window {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Window, 0, len(h.order))
	for _, id := range h.order {
		cl, ok := h.windows[id]
		if !ok {
			continue
		}
		cl.mu.Lock()
		url := cl.url
		cl.mu.Unlock()
		out = append(out, Window{ID: id, URL: url})
	}
	return out
}

// Broadcast delivers a message to every connected window.
func (h *Hub) Broadcast(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, cl := range h.windows {
		select {
		case cl.send <- msg:
		default:
			// Drop if buffer full to avoid blocking all windows.
		}
	}
}

// Send delivers a message to a single window, reporting whether it is still
// connected.
func (h *Hub) Send(id string, msg Message) bool {
	h.mu.RLock()
	cl, ok := h.windows[id]
	h.mu.RUnlock()
	if !ok {
		return false
	}

	select {
	case cl.send <- msg:
		return true
	default:
		return false
	}
}

func (h *Hub) register(cl *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.windows[cl.id] = cl
	h.order = append(h.order, cl.id)
}

func (h *Hub) unregister(cl *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.windows[cl.id]; !ok {
		return
	}
	delete(h.windows, cl.id)
	for i, id := range h.order {
		if id == cl.id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	close(cl.send)
	_ = cl.conn.Close()
}

func (cl *connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (cl *connection) readLoop(h *Hub) {
	defer cl.conn.Close()

	cl.conn.SetReadLimit(maxMessageSize)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg controlMessage
		if err := cl.conn.ReadJSON(&msg); err != nil {
			return
		}
		if msg.Event == "navigate" {
			cl.mu.Lock()
			cl.url = msg.URL
			cl.mu.Unlock()
		}
	}
}

func hostWithoutPort(value string) string {
	value = strings.TrimPrefix(value, "http://")
	value = strings.TrimPrefix(value, "https://")
	if i := strings.IndexByte(value, '/'); i >= 0 {
		value = value[:i]
	}
	if i := strings.IndexByte(value, ':'); i >= 0 {
		value = value[:i]
	}
	return value
}

func isLoopback(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}
