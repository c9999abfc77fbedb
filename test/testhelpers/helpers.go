// Package testhelpers provides shared utilities for driving a relay
// instance over real WebSocket connections in integration tests.
package testhelpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap/zaptest"

	"github.com/socketchat/relay/internal/server"
)

// DefaultTimeout bounds every read in the helpers; generous enough for CI,
// short enough to fail fast.
const DefaultTimeout = 2 * time.Second

// Frame mirrors the wire envelope for test-side decoding.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// StartRelay boots a relay on an httptest server and returns it together
// with the websocket URL. Origins are wide open unless customize narrows
// them. Everything is torn down via t.Cleanup.
func StartRelay(t *testing.T, customize func(cfg *server.Config)) (*httptest.Server, string) {
	t.Helper()

	cfg := server.NewConfig()
	cfg.AllowedOrigins = []string{"*"}
	if customize != nil {
		customize(cfg)
	}

	srv := server.New(cfg, zaptest.NewLogger(t).Sugar())
	go srv.Hub().Run()

	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Hub().Shutdown(2 * time.Second)
	})

	return ts, "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

// Dial opens a websocket connection with the given Origin header and
// closes it on cleanup.
func Dial(t *testing.T, wsURL, origin string) *websocket.Conn {
	t.Helper()

	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// Emit writes one inbound frame.
func Emit(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()

	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshaling %s data: %v", event, err)
	}
	raw, err := json.Marshal(Frame{Event: event, Data: payload})
	if err != nil {
		t.Fatalf("marshaling %s frame: %v", event, err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("writing %s frame: %v", event, err)
	}
}

// ReadFrame reads the next outbound frame within DefaultTimeout.
func ReadFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(DefaultTimeout)); err != nil {
		t.Fatalf("setting read deadline: %v", err)
	}
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading frame: %v", err)
	}
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		t.Fatalf("decoding frame %q: %v", raw, err)
	}
	return f
}

// ExpectEvent reads the next frame and fails unless it carries the given
// event; per-connection delivery order is guaranteed, so tests can assert
// exact sequences. The decoded payload is written into out when non-nil.
func ExpectEvent(t *testing.T, conn *websocket.Conn, event string, out any) {
	t.Helper()

	f := ReadFrame(t, conn)
	if f.Event != event {
		t.Fatalf("expected event %q, got %q (data %s)", event, f.Event, f.Data)
	}
	if out != nil {
		if err := json.Unmarshal(f.Data, out); err != nil {
			t.Fatalf("decoding %s payload: %v", event, err)
		}
	}
}

// ExpectNoEvent asserts that nothing arrives within the wait window.
func ExpectNoEvent(t *testing.T, conn *websocket.Conn, wait time.Duration) {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
		t.Fatalf("setting read deadline: %v", err)
	}
	_, raw, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("expected silence, received frame %s", raw)
	}
	if netErr, ok := err.(interface{ Timeout() bool }); ok && netErr.Timeout() {
		return
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return
	}
	t.Fatalf("unexpected error while expecting silence: %v", err)
}

// JoinRoom emits join_room and consumes the joiner's own three-event
// sequence (history, ack, member list), leaving the connection ready for
// the scenario under test.
func JoinRoom(t *testing.T, conn *websocket.Conn, username, room string) {
	t.Helper()

	Emit(t, conn, "join_room", map[string]string{"username": username, "room": room})
	ExpectEvent(t, conn, "room_messages", nil)
	ExpectEvent(t, conn, "joined_room", nil)
	ExpectEvent(t, conn, "room_users_updated", nil)
}

// Connect dials and consumes the rooms_list greeting.
func Connect(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()

	conn := Dial(t, wsURL, "http://localhost:8080")
	ExpectEvent(t, conn, "rooms_list", nil)
	return conn
}
