package notify

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	// The API binds to loopback; the shell connects from the same host.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	writeTimeout = 5 * time.Second
	// sendBuffer absorbs event bursts per client; a client that falls
	// further behind loses events rather than ever blocking an activation.
	sendBuffer = 32
)

// Hub streams notification events to connected desktop-shell clients over
// websockets. Each connection has a single writer goroutine; the websocket
// library permits only one concurrent writer per connection, so all frames
// for a client are funneled through its send channel.
type Hub struct {
	logger *zap.Logger
	mu     sync.Mutex
	conns  map[*websocket.Conn]chan Event
}

// NewHub builds an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger: logger,
		conns:  make(map[*websocket.Conn]chan Event),
	}
}

// HandleConnection upgrades an HTTP request and keeps the connection
// registered until the client goes away.
func (h *Hub) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade event connection", zap.Error(err))
		return
	}

	send := make(chan Event, sendBuffer)
	h.mu.Lock()
	h.conns[conn] = send
	h.mu.Unlock()
	h.logger.Debug("shell client connected", zap.String("remote", conn.RemoteAddr().String()))

	go h.writeLoop(conn, send)

	// Drain reads so close frames and pings are processed; the stream is
	// one-way otherwise.
	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Notify implements Notifier. Delivery is best-effort: a client whose send
// buffer is full misses the event.
func (h *Hub) Notify(title, message string) {
	event := Event{Title: title, Message: message, Time: time.Now()}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, send := range h.conns {
		select {
		case send <- event:
		default:
			h.logger.Debug("shell client lagging, event dropped",
				zap.String("remote", conn.RemoteAddr().String()))
		}
	}
}

// writeLoop is the sole writer for one connection.
func (h *Hub) writeLoop(conn *websocket.Conn, send <-chan Event) {
	defer conn.Close()
	for event := range send {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(event); err != nil {
			h.logger.Debug("dropping shell client", zap.Error(err))
			h.drop(conn)
			return
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, send := range h.conns {
		close(send)
		delete(h.conns, conn)
	}
}

// drop unregisters a connection. Its writer goroutine exits when the send
// channel closes; Notify never sees the channel again, so the close cannot
// race a send.
func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	if send, ok := h.conns[conn]; ok {
		delete(h.conns, conn)
		close(send)
	}
	h.mu.Unlock()
}
