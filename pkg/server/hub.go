// Package server adapts websocket clients to the session registry.
package server

import (
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tecu23/arena-server/pkg/manager"
	"github.com/tecu23/arena-server/pkg/messages"
)

// InboundHubMessage are the messages that the hub receives
type InboundHubMessage struct {
	Conn    *Connection             // who sent it
	Message messages.InboundMessage // decoded envelope
}

// Hub keeps track of all active connections and is responsible for
// registering/unregistering them. Inbound messages are handed to the registry
// one at a time, in arrival order.
type Hub struct {
	mu          sync.RWMutex             // protects connections for readers outside Run
	connections map[*Connection]struct{} // Registered connections

	register   chan *Connection       // Incoming registration
	unregister chan *Connection       // Incoming unregistration
	inbound    chan InboundHubMessage // Messages routed to the registry

	quit chan struct{}
	done chan struct{}
	once sync.Once

	registry *manager.Registry
	logger   *zap.Logger
}

// NewHub creates a new hub
func NewHub(registry *manager.Registry, logger *zap.Logger) *Hub {
	return &Hub{
		connections: make(map[*Connection]struct{}),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		inbound:     make(chan InboundHubMessage),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
		registry:    registry,
		logger:      logger,
	}
}

// Run is the main execution of the hub
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case conn := <-h.register:
			h.registerConnection(conn)

		case conn := <-h.unregister:
			h.unregisterConnection(conn)

		case msg := <-h.inbound:
			h.registry.Route(msg.Conn.ID(), msg.Message)

		case <-h.quit:
			h.closeAll()
			return
		}
	}
}

// Serve registers an upgraded websocket and starts its pumps.
func (h *Hub) Serve(ws *websocket.Conn) {
	conn := NewConnection(ws, h, h.logger)
	if !h.Register(conn) {
		ws.Close()
		return
	}

	go conn.WritePump()
	go conn.ReadPump()
}

// Register hands conn to the hub. It returns false once the hub is shutting down.
func (h *Hub) Register(conn *Connection) bool {
	select {
	case h.register <- conn:
		return true
	case <-h.quit:
		return false
	}
}

func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.quit:
	}
}

// Dispatch queues a decoded message from conn.
func (h *Hub) Dispatch(conn *Connection, msg messages.InboundMessage) {
	select {
	case h.inbound <- InboundHubMessage{Conn: conn, Message: msg}:
	case <-h.quit:
	}
}

// Connections returns the number of registered connections.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.connections)
}

// Shutdown aborts every session, closes every connection and waits for Run
// to return.
func (h *Hub) Shutdown() {
	h.once.Do(func() { close(h.quit) })
	<-h.done
}

func (h *Hub) registerConnection(conn *Connection) {
	h.mu.Lock()
	h.connections[conn] = struct{}{}
	count := len(h.connections)
	h.mu.Unlock()

	h.registry.AddParticipant(conn)
	h.logger.Debug("connection registered",
		zap.String("participant_id", conn.ID().String()),
		zap.Int("connections", count),
	)
}

func (h *Hub) unregisterConnection(conn *Connection) {
	h.mu.Lock()
	_, ok := h.connections[conn]
	delete(h.connections, conn)
	count := len(h.connections)
	h.mu.Unlock()

	if !ok {
		return
	}

	h.registry.RemoveParticipant(conn.ID())
	conn.close()

	h.logger.Debug("connection unregistered",
		zap.String("participant_id", conn.ID().String()),
		zap.Int("connections", count),
	)
}

func (h *Hub) closeAll() {
	h.registry.Close()

	h.mu.Lock()
	conns := make([]*Connection, 0, len(h.connections))
	for conn := range h.connections {
		conns = append(conns, conn)
	}
	h.connections = make(map[*Connection]struct{})
	h.mu.Unlock()

	for _, conn := range conns {
		h.registry.RemoveParticipant(conn.ID())
		conn.close()
	}

	h.logger.Info("hub shut down", zap.Int("closed_connections", len(conns)))
}
