package broadcast

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

// newTestConnPair creates a connected server/client WebSocket pair through a
// real httptest server.
func newTestConnPair(t *testing.T) (server *ws.Conn, client *ws.Conn) {
	t.Helper()
	upgrader := ws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	ready := make(chan *ws.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
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

// newTestClient wires a registry-side Client over a live connection and
// returns the remote end for reading delivered frames.
func newTestClient(t *testing.T, userID, providerID int64) (*Client, *ws.Conn) {
	t.Helper()
	serverConn, clientConn := newTestConnPair(t)
	c := NewClient(serverConn, userID, providerID, clockwork.NewRealClock(), DefaultSendBuffer)
	t.Cleanup(c.stop)
	return c, clientConn
}

// readEnvelope reads one frame and decodes the envelope. Payload decodes to
// map[string]any.
func readEnvelope(t *testing.T, conn *ws.Conn) Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(msg, &env))
	return env
}

// assertNoFrame asserts that nothing arrives on conn within the window.
func assertNoFrame(t *testing.T, conn *ws.Conn, window time.Duration) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(window)))
	_, msg, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("expected no frame, got %s", msg)
	}
}
