package feed

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pi-chan/claudeye/internal/model"
	"github.com/pi-chan/claudeye/internal/monitor"
	"github.com/pi-chan/claudeye/internal/mux"
)

const writeTimeout = 10 * time.Second

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiErrorResponse struct {
	Error apiError `json:"error"`
}

// wsMessage is one frame on /ws.
type wsMessage struct {
	Type     string          `json:"type"` // always "snapshot" for now
	Snapshot *model.Snapshot `json:"snapshot,omitempty"`
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 16384,
	CheckOrigin:     allowWSOrigin,
}

// allowWSOrigin accepts same-origin and non-browser clients.
func allowWSOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	originURL, err := url.Parse(origin)
	if err != nil || originURL.Host == "" {
		return false
	}
	return strings.EqualFold(originURL.Host, r.Host)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	snap := s.source.Current()
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"sequence": snap.Sequence,
		"time":     time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.source.Current())
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	if s.cfg.ReadOnly {
		writeAPIError(w, http.StatusForbidden, "READ_ONLY", "activation is disabled in read-only mode")
		return
	}
	paneID := r.PathValue("pane")
	if paneID == "" {
		writeAPIError(w, http.StatusBadRequest, "INVALID_REQUEST", "pane id is required")
		return
	}

	err := s.source.Activate(r.Context(), paneID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "pane": paneID})
	case errors.Is(err, monitor.ErrThrottled):
		writeAPIError(w, http.StatusTooManyRequests, "THROTTLED", err.Error())
	case errors.Is(err, mux.ErrPaneNotFound):
		writeAPIError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	default:
		feedLog.Warn("activate_failed", slog.String("pane", paneID), slog.String("error", err.Error()))
		writeAPIError(w, http.StatusBadGateway, "ACTIVATION_FAILED", err.Error())
	}
}

// handleWS streams every published snapshot, newest only, until the client
// goes away or the server shuts down.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// Request contexts derive from baseCtx, so Shutdown ends the stream.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	feedLog.Debug("ws_connected", slog.String("remote", r.RemoteAddr))
	writer := &wsConnWriter{conn: conn}

	// The read loop only watches for close frames.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err,
					websocket.CloseNormalClosure,
					websocket.CloseGoingAway,
					websocket.CloseNoStatusReceived,
				) {
					feedLog.Warn("websocket_closed_unexpectedly", slog.String("error", err.Error()))
				}
				return
			}
		}
	}()

	// Clients that connect before the first poll still get a frame.
	snaps := s.source.Subscribe(ctx)
	if cur := s.source.Current(); cur.Sequence == 0 {
		if err := writer.WriteJSON(wsMessage{Type: "snapshot", Snapshot: &cur}); err != nil {
			return
		}
	}

	for snap := range snaps {
		if err := writer.WriteJSON(wsMessage{Type: "snapshot", Snapshot: &snap}); err != nil {
			feedLog.Debug("ws_write_failed", slog.String("error", err.Error()))
			return
		}
	}
	_ = writer.WriteClose(websocket.CloseGoingAway, "server shutting down")
}

type wsConnWriter struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (w *wsConnWriter) WriteJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return w.conn.WriteJSON(v)
}

func (w *wsConnWriter) WriteClose(code int, text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	msg := websocket.FormatCloseMessage(code, text)
	return w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeAPIError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiErrorResponse{Error: apiError{Code: code, Message: message}})
}
