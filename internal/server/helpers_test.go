package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/BreederHQ/realtime/internal/broadcast"
	"github.com/BreederHQ/realtime/internal/config"
)

type noopBus struct{}

func (noopBus) Enabled() bool                                 { return false }
func (noopBus) Publish(context.Context, string, []byte) error { return nil }

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:              "test",
		Port:                "0",
		MaxConnections:      100,
		MaxConnectionsPerIP: 100,
		ConnectionRate:      1000,
		ConnectionBurst:     1000,
		SendBufferSize:      16,
	}
}

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, *httptest.Server) {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}

	broadcaster := broadcast.NewBroadcaster(broadcast.NewRegistry(), noopBus{})
	srv := NewServer(cfg, broadcaster, nil, clockwork.NewRealClock())

	ts := httptest.NewServer(srv.echo)
	t.Cleanup(func() {
		ts.Close()
		broadcaster.Close()
	})

	return srv, ts
}

// dialWS opens a client WebSocket against the test server. rawQuery is
// appended verbatim, e.g. "user_id=42&provider_id=7".
func dialWS(t *testing.T, ts *httptest.Server, rawQuery string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?" + rawQuery
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })

	return conn
}

// waitForClients polls the stats endpoint until the registry reports the
// expected connection count. Registration happens just after the upgrade
// completes, so the dialer can observe a not-yet-registered connection.
func waitForClients(t *testing.T, ts *httptest.Server, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if fetchStats(t, ts).TotalClients == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d registered clients", want)
}

func fetchStats(t *testing.T, ts *httptest.Server) broadcast.ConnectionStats {
	t.Helper()

	resp, err := http.Get(ts.URL + "/api/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats broadcast.ConnectionStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	return stats
}

// readFrame reads one envelope off a client connection with a deadline.
func readFrame(t *testing.T, conn *websocket.Conn) broadcast.Envelope {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var env broadcast.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

// assertNoFrame asserts nothing arrives on the connection within a short
// window. The read deadline it sets poisons the connection, so only call it
// at the end of a test.
func assertNoFrame(t *testing.T, conn *websocket.Conn) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err, "expected no frame on this connection")
}

func postJSON(t *testing.T, ts *httptest.Server, path, body string) *http.Response {
	t.Helper()

	resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}
