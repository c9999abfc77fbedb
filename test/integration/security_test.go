package integration

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socketchat/relay/internal/server"
	"github.com/socketchat/relay/test/testhelpers"
)

func TestOriginRestriction(t *testing.T) {
	_, wsURL := testhelpers.StartRelay(t, func(cfg *server.Config) {
		cfg.AllowedOrigins = []string{"http://trusted.example"}
	})

	header := http.Header{}
	header.Set("Origin", "http://evil.example")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if conn != nil {
		conn.Close()
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	require.Error(t, err)
	assert.ErrorIs(t, err, websocket.ErrBadHandshake)

	allowed := testhelpers.Dial(t, wsURL, "http://trusted.example")
	testhelpers.ExpectEvent(t, allowed, "rooms_list", nil)
}

func TestOriginRestrictionIsCaseInsensitive(t *testing.T) {
	_, wsURL := testhelpers.StartRelay(t, func(cfg *server.Config) {
		cfg.AllowedOrigins = []string{"http://Trusted.Example"}
	})

	conn := testhelpers.Dial(t, wsURL, "http://trusted.example")
	testhelpers.ExpectEvent(t, conn, "rooms_list", nil)
}

func TestOversizeFrameClosesConnection(t *testing.T) {
	_, wsURL := testhelpers.StartRelay(t, func(cfg *server.Config) {
		cfg.MaxMessageSize = 128
	})

	conn := testhelpers.Connect(t, wsURL)

	big := strings.Repeat("x", 512)
	testhelpers.Emit(t, conn, "send_message", map[string]string{"message": big, "room": "general"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(testhelpers.DefaultTimeout)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
}

func TestRateLimiterDiscardsExcessFrames(t *testing.T) {
	_, wsURL := testhelpers.StartRelay(t, func(cfg *server.Config) {
		cfg.RateLimitBurst = 2
		cfg.RateLimitRefillInterval = time.Hour
	})

	conn := testhelpers.Connect(t, wsURL)

	// join_room spends the first token.
	testhelpers.JoinRoom(t, conn, "alice", "general")

	testhelpers.Emit(t, conn, "send_message", map[string]string{"message": "first", "room": "general"})
	var msg chatMessage
	testhelpers.ExpectEvent(t, conn, "new_message", &msg)
	assert.Equal(t, "first", msg.Message)

	// Budget exhausted; the next frame is dropped without a reply and the
	// connection stays open.
	testhelpers.Emit(t, conn, "send_message", map[string]string{"message": "second", "room": "general"})
	testhelpers.ExpectNoEvent(t, conn, 300*time.Millisecond)
}
