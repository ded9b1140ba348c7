package broadcast

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dalecompra/whatsapp-api-manager/internal/domain"
	"github.com/dalecompra/whatsapp-api-manager/internal/metrics"
)

const (
	maxClientsPerInstance = 50
	writeTimeout          = 5 * time.Second
)

// --- Command types ---

type hubCmd interface{ hubCmd() }

type cmdRegister struct {
	instanceID string
	conn       *websocket.Conn
	errCh      chan error
}

func (cmdRegister) hubCmd() {}

type cmdUnregister struct {
	instanceID string
	conn       *websocket.Conn
}

func (cmdUnregister) hubCmd() {}

type cmdPublish struct {
	update domain.StatusUpdate
}

func (cmdPublish) hubCmd() {}

type cmdGetClientCount struct {
	instanceID string
	replyCh    chan int
}

func (cmdGetClientCount) hubCmd() {}

type cmdStop struct{}

func (cmdStop) hubCmd() {}

// --- Per-connection writer ---

type clientWriter struct {
	conn   *websocket.Conn
	sendCh chan []byte
	done   chan struct{}
}

func newClientWriter(conn *websocket.Conn) *clientWriter {
	cw := &clientWriter{
		conn:   conn,
		sendCh: make(chan []byte, 16),
		done:   make(chan struct{}),
	}
	go cw.run()
	return cw
}

func (cw *clientWriter) run() {
	for {
		select {
		case msg, ok := <-cw.sendCh:
			if !ok {
				return
			}
			_ = cw.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := cw.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-cw.done:
			return
		}
	}
}

func (cw *clientWriter) stop() {
	close(cw.done)
	_ = cw.conn.Close()
}

// --- Hub ---

// Hub fans out instance status updates to subscribed WebSocket clients.
type Hub struct {
	cmdCh   chan hubCmd
	clients map[string]map[*websocket.Conn]*clientWriter
	stopped chan struct{}
}

func NewHub() *Hub {
	hub := &Hub{
		cmdCh:   make(chan hubCmd, 256),
		clients: make(map[string]map[*websocket.Conn]*clientWriter),
		stopped: make(chan struct{}),
	}
	go hub.run()
	return hub
}

func (h *Hub) run() {
	defer close(h.stopped)
	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case cmdRegister:
			h.handleRegister(c)
		case cmdUnregister:
			h.handleUnregister(c.instanceID, c.conn)
		case cmdPublish:
			h.handlePublish(c.update)
		case cmdGetClientCount:
			c.replyCh <- len(h.clients[c.instanceID])
		case cmdStop:
			h.handleStop()
			return
		}
	}
}

// Register subscribes a connection to one instance's status updates.
func (h *Hub) Register(instanceID string, conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	select {
	case h.cmdCh <- cmdRegister{instanceID: instanceID, conn: conn, errCh: errCh}:
		return <-errCh
	case <-h.stopped:
		return websocket.ErrCloseSent
	}
}

// Unregister removes a connection. Safe to call for unknown connections.
func (h *Hub) Unregister(instanceID string, conn *websocket.Conn) {
	select {
	case h.cmdCh <- cmdUnregister{instanceID: instanceID, conn: conn}:
	case <-h.stopped:
	}
}

// Publish delivers a status update to all subscribers of its instance.
// Non-blocking for the caller; intended as the registry's Notifier.
func (h *Hub) Publish(update domain.StatusUpdate) {
	select {
	case h.cmdCh <- cmdPublish{update: update}:
	case <-h.stopped:
	}
}

// GetClientCount returns the number of subscribers for one instance.
func (h *Hub) GetClientCount(instanceID string) int {
	replyCh := make(chan int, 1)
	select {
	case h.cmdCh <- cmdGetClientCount{instanceID: instanceID, replyCh: replyCh}:
		return <-replyCh
	case <-h.stopped:
		return 0
	}
}

// Stop closes all connections and shuts the hub down.
func (h *Hub) Stop() {
	select {
	case h.cmdCh <- cmdStop{}:
		<-h.stopped
	case <-h.stopped:
	}
}

func (h *Hub) handleRegister(c cmdRegister) {
	conns := h.clients[c.instanceID]
	if len(conns) >= maxClientsPerInstance {
		c.errCh <- websocket.ErrBadHandshake
		return
	}
	if conns == nil {
		conns = make(map[*websocket.Conn]*clientWriter)
		h.clients[c.instanceID] = conns
	}
	conns[c.conn] = newClientWriter(c.conn)
	metrics.StreamConnectedClients.Inc()
	c.errCh <- nil
}

func (h *Hub) handleUnregister(instanceID string, conn *websocket.Conn) {
	conns, ok := h.clients[instanceID]
	if !ok {
		return
	}
	cw, ok := conns[conn]
	if !ok {
		return
	}
	cw.stop()
	delete(conns, conn)
	metrics.StreamConnectedClients.Dec()
	if len(conns) == 0 {
		delete(h.clients, instanceID)
	}
}

func (h *Hub) handlePublish(update domain.StatusUpdate) {
	conns := h.clients[update.InstanceID]
	if len(conns) == 0 {
		return
	}

	payload, err := json.Marshal(update)
	if err != nil {
		slog.Error("Failed to marshal status update", "instance_id", update.InstanceID, "error", err)
		return
	}

	for conn, cw := range conns {
		select {
		case cw.sendCh <- payload:
		default:
			// Slow client: drop it rather than stall the hub.
			h.handleUnregister(update.InstanceID, conn)
		}
	}
}

func (h *Hub) handleStop() {
	for instanceID, conns := range h.clients {
		for _, cw := range conns {
			cw.stop()
		}
		delete(h.clients, instanceID)
	}
	metrics.StreamConnectedClients.Set(0)
}
