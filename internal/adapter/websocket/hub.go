// Package websocket implements the live update fan-out: a hub actor owns all
// client connections and broadcasts tally snapshots per stream.
package websocket

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pscheid92/tallyd/internal/adapter/metrics"
)

const maxClientsPerStream = 50

// --- Command types ---

type hubCmd interface{ hubCmd() }

type cmdRegister struct {
	streamID uuid.UUID
	conn     *websocket.Conn
	errCh    chan error
}

func (cmdRegister) hubCmd() {}

type cmdUnregister struct {
	streamID uuid.UUID
	conn     *websocket.Conn
}

func (cmdUnregister) hubCmd() {}

type cmdBroadcast struct {
	streamID uuid.UUID
	data     []byte
}

func (cmdBroadcast) hubCmd() {}

type cmdGetClientCount struct {
	streamID uuid.UUID
	replyCh  chan int
}

func (cmdGetClientCount) hubCmd() {}

type cmdFirstConnectResult struct {
	streamID uuid.UUID
	err      error
}

func (cmdFirstConnectResult) hubCmd() {}

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
			cw.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
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
	cw.conn.Close()
}

// --- Hub ---

// Hub serializes all connection bookkeeping through a single actor goroutine.
type Hub struct {
	cmdCh            chan hubCmd
	clients          map[uuid.UUID]map[*websocket.Conn]*clientWriter
	pendingClients   map[uuid.UUID][]cmdRegister
	limiter          *ConnectionLimiter
	metrics          *metrics.WebSocketMetrics
	onFirstConnect   func(uuid.UUID) error
	onLastDisconnect func(uuid.UUID)
}

// NewHub creates and starts the hub. maxConnections caps total connections
// across all streams; zero or negative means unlimited. onFirstConnect runs
// before the first client of a stream is admitted; a non-nil error rejects
// all waiting clients. wsMetrics and both callbacks may be nil.
func NewHub(maxConnections int, wsMetrics *metrics.WebSocketMetrics, onFirstConnect func(uuid.UUID) error, onLastDisconnect func(uuid.UUID)) *Hub {
	hub := &Hub{
		cmdCh:            make(chan hubCmd, 256),
		clients:          make(map[uuid.UUID]map[*websocket.Conn]*clientWriter),
		pendingClients:   make(map[uuid.UUID][]cmdRegister),
		metrics:          wsMetrics,
		onFirstConnect:   onFirstConnect,
		onLastDisconnect: onLastDisconnect,
	}
	if maxConnections > 0 {
		hub.limiter = NewConnectionLimiter(int64(maxConnections))
	}
	go hub.run()
	return hub
}

func (h *Hub) run() {
	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case cmdRegister:
			h.handleRegister(c)
		case cmdUnregister:
			h.handleUnregister(c.streamID, c.conn)
		case cmdBroadcast:
			h.handleBroadcast(c)
		case cmdGetClientCount:
			clients := h.clients[c.streamID]
			c.replyCh <- len(clients)
		case cmdFirstConnectResult:
			h.handleFirstConnectResult(c)
		case cmdStop:
			h.handleStop()
			return
		}
	}
}

func (h *Hub) handleRegister(c cmdRegister) {
	if h.limiter != nil && !h.limiter.Acquire() {
		slog.Warn("Rejecting websocket client: connection limit reached", "stream_id", c.streamID.String(), "max", h.limiter.Max())
		h.trackRejected()
		c.conn.Close()
		c.errCh <- fmt.Errorf("connection limit (%d) reached", h.limiter.Max())
		return
	}

	// Stream already has active clients, add directly
	if clients, exists := h.clients[c.streamID]; exists {
		if len(clients) >= maxClientsPerStream {
			slog.Warn("Rejecting websocket client: max clients reached", "stream_id", c.streamID.String(), "max", maxClientsPerStream)
			h.releaseSlot()
			h.trackRejected()
			c.conn.Close()
			c.errCh <- fmt.Errorf("max clients per stream (%d) reached", maxClientsPerStream)
			return
		}
		h.admit(c.streamID, c.conn, clients)
		c.errCh <- nil
		return
	}

	// Stream has a pending onFirstConnect, queue this client
	if _, exists := h.pendingClients[c.streamID]; exists {
		h.pendingClients[c.streamID] = append(h.pendingClients[c.streamID], c)
		return
	}

	// New stream, first client
	if h.onFirstConnect != nil {
		h.pendingClients[c.streamID] = []cmdRegister{c}
		streamID := c.streamID
		go func() {
			err := h.onFirstConnect(streamID)
			h.cmdCh <- cmdFirstConnectResult{
				streamID: streamID,
				err:      err,
			}
		}()
		return
	}

	// No onFirstConnect callback, register immediately
	clients := make(map[*websocket.Conn]*clientWriter)
	h.clients[c.streamID] = clients
	h.admit(c.streamID, c.conn, clients)
	c.errCh <- nil
}

// admit adds a connection to the stream's client set. The limiter slot for
// the connection is already held.
func (h *Hub) admit(streamID uuid.UUID, conn *websocket.Conn, clients map[*websocket.Conn]*clientWriter) {
	clients[conn] = newClientWriter(conn)
	if h.metrics != nil {
		h.metrics.ActiveConnections.Inc()
	}
	slog.Debug("Websocket client registered", "stream_id", streamID.String(), "clients", len(clients))
}

func (h *Hub) releaseSlot() {
	if h.limiter != nil {
		h.limiter.Release()
	}
}

func (h *Hub) trackRejected() {
	if h.metrics != nil {
		h.metrics.ClientsRejected.Inc()
	}
}

func (h *Hub) handleFirstConnectResult(c cmdFirstConnectResult) {
	pending, exists := h.pendingClients[c.streamID]
	if !exists {
		return
	}
	delete(h.pendingClients, c.streamID)

	if c.err != nil {
		slog.Warn("Rejecting websocket clients: first connect failed", "stream_id", c.streamID.String(), "error", c.err)
		for _, p := range pending {
			h.releaseSlot()
			h.trackRejected()
			p.conn.Close()
			p.errCh <- c.err
		}
		return
	}

	clients := make(map[*websocket.Conn]*clientWriter)
	h.clients[c.streamID] = clients
	for _, p := range pending {
		h.admit(c.streamID, p.conn, clients)
		p.errCh <- nil
	}
}

func (h *Hub) handleUnregister(streamID uuid.UUID, conn *websocket.Conn) {
	clients, exists := h.clients[streamID]
	if !exists {
		return
	}

	cw, exists := clients[conn]
	if !exists {
		return
	}

	cw.stop()
	delete(clients, conn)
	h.releaseSlot()
	if h.metrics != nil {
		h.metrics.ActiveConnections.Dec()
	}

	if len(clients) == 0 {
		delete(h.clients, streamID)
		if h.onLastDisconnect != nil {
			h.onLastDisconnect(streamID)
		}
		slog.Debug("Last websocket client disconnected", "stream_id", streamID.String())
	} else {
		slog.Debug("Websocket client unregistered", "stream_id", streamID.String(), "clients", len(clients))
	}
}

func (h *Hub) handleBroadcast(c cmdBroadcast) {
	clients, exists := h.clients[c.streamID]
	if !exists {
		return
	}

	var slow []*websocket.Conn
	for conn, cw := range clients {
		select {
		case cw.sendCh <- c.data:
			// sent successfully
		default:
			// client is slow, mark for removal
			slow = append(slow, conn)
		}
	}

	for _, conn := range slow {
		slog.Warn("Disconnecting slow websocket client", "stream_id", c.streamID.String())
		h.handleUnregister(c.streamID, conn)
	}
}

func (h *Hub) handleStop() {
	for streamID, clients := range h.clients {
		for _, cw := range clients {
			cw.stop()
			h.releaseSlot()
			if h.metrics != nil {
				h.metrics.ActiveConnections.Dec()
			}
		}
		delete(h.clients, streamID)
	}
	for streamID, pending := range h.pendingClients {
		for _, p := range pending {
			h.releaseSlot()
			p.conn.Close()
			p.errCh <- fmt.Errorf("hub stopped")
		}
		delete(h.pendingClients, streamID)
	}
}

// --- Public API ---

func (h *Hub) Register(streamID uuid.UUID, conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	h.cmdCh <- cmdRegister{streamID: streamID, conn: conn, errCh: errCh}
	return <-errCh
}

func (h *Hub) Unregister(streamID uuid.UUID, conn *websocket.Conn) {
	h.cmdCh <- cmdUnregister{streamID: streamID, conn: conn}
}

// Broadcast sends raw data to every client of the stream. Slow clients are
// disconnected instead of blocking the hub.
func (h *Hub) Broadcast(streamID uuid.UUID, data []byte) {
	h.cmdCh <- cmdBroadcast{streamID: streamID, data: data}
}

func (h *Hub) GetClientCount(streamID uuid.UUID) int {
	replyCh := make(chan int, 1)
	h.cmdCh <- cmdGetClientCount{streamID: streamID, replyCh: replyCh}
	return <-replyCh
}

func (h *Hub) Stop() {
	h.cmdCh <- cmdStop{}
}
