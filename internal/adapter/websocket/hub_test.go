package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/pscheid92/tallyd/internal/adapter/metrics"
	"github.com/pscheid92/tallyd/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testHub sets up a Hub with a test HTTP server that upgrades connections to WebSocket.
// Returns the hub and a dial function to connect clients.
func testHub(t *testing.T, onFirst func(uuid.UUID) error, onLast func(uuid.UUID)) (*Hub, func(streamID uuid.UUID) *ws.Conn) {
	t.Helper()

	hub := NewHub(0, nil, onFirst, onLast)
	t.Cleanup(func() { hub.Stop() })

	upgrader := ws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Fatalf("upgrade failed: %v", err)
		}
		streamID := uuid.MustParse(r.URL.Query().Get("stream"))
		_ = hub.Register(streamID, conn)

		// Read loop to detect disconnects
		go func() {
			defer hub.Unregister(streamID, conn)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					break
				}
			}
		}()
	}))

	t.Cleanup(func() { server.Close() })

	dial := func(streamID uuid.UUID) *ws.Conn {
		t.Helper()
		url := "ws" + strings.TrimPrefix(server.URL, "http") + "?stream=" + streamID.String()
		conn, _, err := ws.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		return conn
	}

	return hub, dial
}

// waitForClientCount polls until the hub has the expected count for a stream.
func waitForClientCount(hub *Hub, streamID uuid.UUID, expected int) bool {
	for range 100 {
		if hub.GetClientCount(streamID) == expected {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

func TestHub_RegisterAndBroadcast(t *testing.T) {
	hub, dial := testHub(t, nil, nil)
	streamID := uuid.New()

	conn := dial(streamID)
	require.True(t, waitForClientCount(hub, streamID, 1))

	hub.Broadcast(streamID, []byte(`{"mode":"a","total":5}`))

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(msg, &result))
	assert.Equal(t, "a", result["mode"])
	assert.Equal(t, float64(5), result["total"])
}

func TestHub_MultipleClients(t *testing.T) {
	hub, dial := testHub(t, nil, nil)
	streamID := uuid.New()

	conn1 := dial(streamID)
	conn2 := dial(streamID)
	require.True(t, waitForClientCount(hub, streamID, 2))

	hub.Broadcast(streamID, []byte(`{"total":7}`))

	// Both clients should receive the message
	for _, conn := range []*ws.Conn{conn1, conn2} {
		conn.SetReadDeadline(time.Now().Add(time.Second))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)

		var result map[string]interface{}
		require.NoError(t, json.Unmarshal(msg, &result))
		assert.Equal(t, float64(7), result["total"])
	}
}

func TestHub_OnFirstConnect(t *testing.T) {
	var connectCount atomic.Int32
	onFirst := func(id uuid.UUID) error {
		connectCount.Add(1)
		return nil
	}

	hub, dial := testHub(t, onFirst, nil)
	streamID := uuid.New()

	// First client triggers onFirstConnect
	dial(streamID)
	require.True(t, waitForClientCount(hub, streamID, 1))
	assert.Equal(t, int32(1), connectCount.Load())

	// Second client should NOT trigger onFirstConnect
	dial(streamID)
	require.True(t, waitForClientCount(hub, streamID, 2))
	assert.Equal(t, int32(1), connectCount.Load())
}

func TestHub_OnFirstConnectError(t *testing.T) {
	onFirst := func(id uuid.UUID) error {
		return fmt.Errorf("stream lookup failed")
	}

	hub, dial := testHub(t, onFirst, nil)
	streamID := uuid.New()

	conn := dial(streamID)

	// The hub should close the connection when onFirstConnect fails
	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "connection should be closed after onFirstConnect error")

	assert.Equal(t, 0, hub.GetClientCount(streamID))
}

func TestHub_OnLastDisconnect(t *testing.T) {
	var mu sync.Mutex
	var disconnectedStreams []uuid.UUID
	onLast := func(id uuid.UUID) {
		mu.Lock()
		defer mu.Unlock()
		disconnectedStreams = append(disconnectedStreams, id)
	}

	hub, dial := testHub(t, nil, onLast)
	streamID := uuid.New()

	conn1 := dial(streamID)
	require.True(t, waitForClientCount(hub, streamID, 1))

	conn2 := dial(streamID)
	require.True(t, waitForClientCount(hub, streamID, 2))

	// Close first: still one client left, no callback
	conn1.Close()
	require.True(t, waitForClientCount(hub, streamID, 1))
	mu.Lock()
	assert.Empty(t, disconnectedStreams)
	mu.Unlock()

	// Close second: last client, callback fires
	conn2.Close()
	require.True(t, waitForClientCount(hub, streamID, 0))
	// Wait a bit for the callback to fire
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	require.Len(t, disconnectedStreams, 1)
	assert.Equal(t, streamID, disconnectedStreams[0])
	mu.Unlock()
}

func TestHub_GetClientCount(t *testing.T) {
	hub, dial := testHub(t, nil, nil)
	streamID := uuid.New()

	assert.Equal(t, 0, hub.GetClientCount(streamID))

	conn1 := dial(streamID)
	require.True(t, waitForClientCount(hub, streamID, 1))

	dial(streamID)
	require.True(t, waitForClientCount(hub, streamID, 2))

	conn1.Close()
	require.True(t, waitForClientCount(hub, streamID, 1))
}

func TestHub_BroadcastNoClients(t *testing.T) {
	hub, _ := testHub(t, nil, nil)
	// Should not panic
	hub.Broadcast(uuid.New(), []byte(`{}`))
}

func TestHub_MaxClientsPerStream(t *testing.T) {
	hub := NewHub(0, nil, nil, nil)
	t.Cleanup(func() { hub.Stop() })

	streamID := uuid.New()

	// Register maxClientsPerStream clients, all should succeed
	conns := make([]*ws.Conn, 0, maxClientsPerStream)
	for i := 0; i < maxClientsPerStream; i++ {
		server, client := newTestConnPair(t)
		errCh := make(chan error, 1)
		hub.cmdCh <- cmdRegister{streamID: streamID, conn: server, errCh: errCh}
		err := <-errCh
		require.NoError(t, err, "client %d should register successfully", i)
		conns = append(conns, client)
	}

	assert.Equal(t, maxClientsPerStream, hub.GetClientCount(streamID))

	// The next client should be rejected
	server, client := newTestConnPair(t)
	errCh := make(chan error, 1)
	hub.cmdCh <- cmdRegister{streamID: streamID, conn: server, errCh: errCh}
	err := <-errCh
	assert.Error(t, err, "client beyond max should be rejected")
	assert.Contains(t, err.Error(), "max clients per stream")

	_ = client
	for _, c := range conns {
		c.Close()
	}
}

func TestHub_ConnectionLimit(t *testing.T) {
	hub := NewHub(2, nil, nil, nil)
	t.Cleanup(func() { hub.Stop() })

	streamA := uuid.New()
	streamB := uuid.New()

	serverA, _ := newTestConnPair(t)
	require.NoError(t, hub.Register(streamA, serverA))
	serverB, _ := newTestConnPair(t)
	require.NoError(t, hub.Register(streamB, serverB))

	// Third connection exceeds the instance-wide limit regardless of stream
	serverC, _ := newTestConnPair(t)
	err := hub.Register(uuid.New(), serverC)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection limit")

	// Disconnecting frees a slot
	hub.Unregister(streamA, serverA)
	require.True(t, waitForClientCount(hub, streamA, 0))

	serverD, _ := newTestConnPair(t)
	assert.NoError(t, hub.Register(uuid.New(), serverD))
}

func TestHub_TracksConnectionMetrics(t *testing.T) {
	m := metrics.NewWebSocketMetrics(prometheus.NewRegistry())
	hub := NewHub(1, m, nil, nil)
	t.Cleanup(func() { hub.Stop() })

	streamID := uuid.New()

	server1, _ := newTestConnPair(t)
	require.NoError(t, hub.Register(streamID, server1))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ActiveConnections))

	server2, _ := newTestConnPair(t)
	require.Error(t, hub.Register(streamID, server2))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ClientsRejected))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ActiveConnections))

	hub.Unregister(streamID, server1)
	require.True(t, waitForClientCount(hub, streamID, 0))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.ActiveConnections))
}

// newTestConnPair creates a connected pair of WebSocket connections for testing.
func newTestConnPair(t *testing.T) (server *ws.Conn, client *ws.Conn) {
	t.Helper()
	upgrader := ws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	ready := make(chan *ws.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Fatalf("upgrade failed: %v", err)
		}
		ready <- conn
	}))
	t.Cleanup(func() { srv.Close() })

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { clientConn.Close() })

	serverConn := <-ready
	t.Cleanup(func() { serverConn.Close() })

	return serverConn, clientConn
}

func TestPublisher_BroadcastsSnapshot(t *testing.T) {
	hub, dial := testHub(t, nil, nil)
	streamID := uuid.New()

	conn := dial(streamID)
	require.True(t, waitForClientCount(hub, streamID, 1))

	pub := NewPublisher(hub, nil)
	err := pub.PublishSnapshot(context.Background(), streamID, &domain.TallySnapshot{
		Mode: "a", ModeCount: 4, Total: 9, Distinct: 3,
	})
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var update snapshotUpdate
	require.NoError(t, json.Unmarshal(msg, &update))
	assert.Equal(t, "a", update.Mode)
	assert.Equal(t, int64(4), update.ModeCount)
	assert.Equal(t, int64(9), update.Total)
	assert.Equal(t, 3, update.Distinct)
	assert.Equal(t, "active", update.Status)
}
