// Package realtime is the placeholder broadcast channel: every text frame a
// client sends is fanned out to every connected client. Rooms, history and
// authentication are intentionally absent.
package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/labstack/echo/v4"
)

const (
	sendQueueSize = 64
	writeTimeout  = 5 * time.Second
)

type client struct {
	send chan []byte
	done chan struct{}
	once sync.Once
}

// close is idempotent; send stays open so concurrent broadcasters never
// panic.
func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

type Hub struct {
	log *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log:     log,
		clients: make(map[*client]struct{}),
	}
}

// Handler upgrades the request and pumps frames until either side quits.
func (h *Hub) Handler(c echo.Context) error {
	conn, err := websocket.Accept(c.Response(), c.Request(), nil)
	if err != nil {
		// Accept has already written the handshake error.
		return nil
	}

	cl := &client{
		send: make(chan []byte, sendQueueSize),
		done: make(chan struct{}),
	}
	h.add(cl)
	defer h.remove(cl)

	ctx := c.Request().Context()
	go h.writeLoop(ctx, conn, cl)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			break
		}
		h.broadcast(data)
	}

	cl.close()
	conn.Close(websocket.StatusNormalClosure, "")
	return nil
}

func (h *Hub) writeLoop(ctx context.Context, conn *websocket.Conn, cl *client) {
	for {
		select {
		case msg := <-cl.send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				cl.close()
				return
			}
		case <-cl.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for cl := range h.clients {
		select {
		case cl.send <- msg:
		default:
			// Slow consumer: drop the frame rather than block the hub.
		}
	}
}

func (h *Hub) add(cl *client) {
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Debug("ws_client_connected", "clients", n)
}

func (h *Hub) remove(cl *client) {
	h.mu.Lock()
	delete(h.clients, cl)
	n := len(h.clients)
	h.mu.Unlock()
	cl.close()
	h.log.Debug("ws_client_disconnected", "clients", n)
}
