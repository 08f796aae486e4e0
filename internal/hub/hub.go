// Package hub fans service status transitions out to connected realtime
// clients and accepts start/stop commands from them. Delivery is
// fire-and-forget: clients that disconnect simply miss updates until they
// reconnect and receive a fresh snapshot.
package hub

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"studiod/internal/metrics"
	"studiod/internal/registry"
)

// Controller is the slice of the supervisor the hub needs to dispatch
// client commands.
type Controller interface {
	Start(ctx context.Context, name string) error
	Stop(name string) error
}

// Hub owns the set of connected clients. All membership changes and
// fan-out go through its run loop, so no per-client locking is needed.
type Hub struct {
	reg  *registry.Registry
	ctrl Controller
	log  *slog.Logger

	upgrader   websocket.Upgrader
	register   chan *client
	unregister chan *client
	broadcast  chan Event
	done       chan struct{} // closed when Run exits; unblocks senders

	mu      sync.RWMutex
	clients map[*client]struct{}
}

func New(reg *registry.Registry, ctrl Controller) *Hub {
	return &Hub{
		reg:  reg,
		ctrl: ctrl,
		log:  slog.Default(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The control plane is loopback-only; the CEP panel sets no Origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan Event, 64),
		done:       make(chan struct{}),
		clients:    make(map[*client]struct{}),
	}
}

// Run processes membership and fan-out until ctx is canceled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			// Unblock in-flight ServeWS/pump sends before dropping clients.
			close(h.done)
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			metrics.SetClients(0)
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.SetClients(n)
			// Connect-time snapshot so the client starts from ground truth.
			c.send <- snapshotEvent(h.reg.Snapshot())
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.SetClients(n)
		case evt := <-h.broadcast:
			metrics.IncBroadcast(evt.Type)
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- evt:
				default:
					// Slow consumer: drop it rather than block fan-out.
					go h.drop(c)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// ServeWS upgrades an HTTP request into a realtime connection. Once the
// hub has stopped, new connections are closed right after the upgrade.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	c := &client{hub: h, conn: conn, send: make(chan Event, sendBuffer)}
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

// drop hands a client to the run loop for removal without blocking past
// the hub's lifetime.
func (h *Hub) drop(c *client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// BroadcastUpdate pushes one service's new public view to every client.
// Events offered after the hub has stopped are discarded.
func (h *Hub) BroadcastUpdate(name string, view registry.PublicView) {
	select {
	case h.broadcast <- updateEvent(name, view):
	case <-h.done:
	}
}

// BroadcastError reports a failed client-requested operation.
func (h *Hub) BroadcastError(name string, msg string) {
	select {
	case h.broadcast <- errorEvent(name, msg):
	case <-h.done:
	}
}

// ClientCount reports connected clients; used by tests and metrics.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// dispatch executes one client command and reports failures on the
// error channel. Success is visible through the resulting status update.
func (h *Hub) dispatch(cmd Command) {
	if cmd.Payload == "" {
		return
	}
	var err error
	switch cmd.Type {
	case CmdStart:
		err = h.ctrl.Start(context.Background(), cmd.Payload)
	case CmdStop:
		err = h.ctrl.Stop(cmd.Payload)
	default:
		h.log.Debug("unknown realtime command", "type", cmd.Type)
		return
	}
	if err != nil {
		h.log.Warn("realtime command failed", "type", cmd.Type, "service", cmd.Payload, "error", err)
		h.BroadcastError(cmd.Payload, err.Error())
	}
}
