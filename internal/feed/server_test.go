package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pi-chan/claudeye/internal/model"
	"github.com/pi-chan/claudeye/internal/monitor"
	"github.com/pi-chan/claudeye/internal/mux"
)

const (
	idleScreen     = "Some output\n────────\n❯ \n────────\n"
	approvalScreen = "Some output\n❯ 1. Yes, allow once\n  2. Yes, allow always\n  3. No\n"
)

func wsURL(baseURL, path string) string {
	return "ws://" + strings.TrimPrefix(baseURL, "http://") + path
}

func newTestFeed(t *testing.T, cfg Config) (*mux.Fake, *monitor.Monitor, *httptest.Server) {
	t.Helper()
	f := mux.NewFake(model.Pane{ID: "%1", Target: "work:0.0", Session: "work", Command: "claude"})
	f.SetContent("%1", idleScreen)
	m := monitor.New(monitor.Options{Mux: f, ActivateRate: 1000, ActivateBurst: 100})

	srv := NewServer(cfg, m)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return f, m, ts
}

func TestSnapshotEndpoint(t *testing.T) {
	_, m, ts := newTestFeed(t, Config{})
	_, err := m.Once(context.Background())
	require.NoError(t, err)

	resp, err := http.Get(ts.URL + "/snapshot")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var snap model.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, uint64(1), snap.Sequence)
	require.Len(t, snap.Sessions, 1)
	assert.Equal(t, model.StateIdle, snap.Sessions[0].State)
}

func TestSnapshotEndpoint_MethodNotAllowed(t *testing.T) {
	_, _, ts := newTestFeed(t, Config{})

	resp, err := http.Post(ts.URL+"/snapshot", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	_, _, ts := newTestFeed(t, Config{})

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, true, body["ok"])
}

func TestActivateEndpoint(t *testing.T) {
	f, m, ts := newTestFeed(t, Config{})
	_, err := m.Once(context.Background())
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+"/activate/"+url.PathEscape("%1"), "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"%1"}, f.Activations())
}

func TestActivateEndpoint_UnknownPane(t *testing.T) {
	_, m, ts := newTestFeed(t, Config{})
	_, err := m.Once(context.Background())
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+"/activate/"+url.PathEscape("%9"), "", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body apiErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
}

func TestActivateEndpoint_ReadOnly(t *testing.T) {
	f, m, ts := newTestFeed(t, Config{ReadOnly: true})
	_, err := m.Once(context.Background())
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+"/activate/"+url.PathEscape("%1"), "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Empty(t, f.Activations())
}

func readSnapshot(t *testing.T, conn *websocket.Conn) model.Snapshot {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg wsMessage
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "snapshot", msg.Type)
	require.NotNil(t, msg.Snapshot)
	return *msg.Snapshot
}

func TestWSStreamsSnapshots(t *testing.T) {
	f, m, ts := newTestFeed(t, Config{})
	_, err := m.Once(context.Background())
	require.NoError(t, err)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, "/ws"), nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	first := readSnapshot(t, conn)
	assert.Equal(t, uint64(1), first.Sequence)

	f.SetContent("%1", approvalScreen)
	_, err = m.Once(context.Background())
	require.NoError(t, err)

	next := readSnapshot(t, conn)
	assert.Equal(t, uint64(2), next.Sequence)
	require.Len(t, next.Sessions, 1)
	assert.Equal(t, model.StateApproval, next.Sessions[0].State)
}

func TestWSBeforeFirstPoll(t *testing.T) {
	_, _, ts := newTestFeed(t, Config{})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, "/ws"), nil)
	require.NoError(t, err)
	defer conn.Close()

	snap := readSnapshot(t, conn)
	assert.Equal(t, uint64(0), snap.Sequence)
	assert.Empty(t, snap.Sessions)
}

func TestWSRejectsCrossOrigin(t *testing.T) {
	_, _, ts := newTestFeed(t, Config{})

	headers := http.Header{}
	headers.Set("Origin", "https://evil.example")
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, "/ws"), headers)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAllowWSOrigin(t *testing.T) {
	tests := []struct {
		origin string
		host   string
		want   bool
	}{
		{"", "127.0.0.1:7420", true},
		{"http://127.0.0.1:7420", "127.0.0.1:7420", true},
		{"http://LOCALHOST:7420", "localhost:7420", true},
		{"http://other:7420", "127.0.0.1:7420", false},
		{"::bad", "127.0.0.1:7420", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		r.Host = tt.host
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := allowWSOrigin(r); got != tt.want {
			t.Errorf("allowWSOrigin(%q, %q) = %v, want %v", tt.origin, tt.host, got, tt.want)
		}
	}
}

func TestServerDefaults(t *testing.T) {
	srv := NewServer(Config{}, monitor.New(monitor.Options{Mux: mux.NewFake()}))
	assert.Equal(t, DefaultListenAddr, srv.Addr())
}
