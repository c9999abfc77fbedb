package server

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/socketchat/relay/internal/chat"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return New(NewConfig(), zaptest.NewLogger(t).Sugar())
}

// addStubClient inserts a pumpless client straight into the hub, bypassing
// Register so no goroutines touch the nil connection.
func addStubClient(s *Server, id string) *Client {
	c := newClient(id, nil, s, "127.0.0.1:0")
	s.hub.mutex.Lock()
	s.hub.clients[id] = c
	s.hub.mutex.Unlock()
	return c
}

func receivedEvents(t *testing.T, c *Client) []string {
	t.Helper()
	var events []string
	for {
		select {
		case raw := <-c.send:
			var f frame
			require.NoError(t, json.Unmarshal(raw, &f))
			events = append(events, f.Event)
		default:
			return events
		}
	}
}

func TestDeliverToSingleConnection(t *testing.T) {
	s := newTestServer(t)
	c1 := addStubClient(s, "c1")
	c2 := addStubClient(s, "c2")

	s.hub.deliver([]chat.Envelope{{
		Target:  chat.ToConn("c1"),
		Event:   chat.EventJoinedRoom,
		Payload: chat.JoinAck{Room: "general", Username: "alice"},
	}})

	assert.Equal(t, []string{chat.EventJoinedRoom}, receivedEvents(t, c1))
	assert.Empty(t, receivedEvents(t, c2))
}

func TestDeliverToRoomResolvesLiveMembership(t *testing.T) {
	s := newTestServer(t)
	c1 := addStubClient(s, "c1")
	c2 := addStubClient(s, "c2")
	c3 := addStubClient(s, "c3")

	s.state.JoinRoom(chat.NewUser("alice", "general", "c1"))
	s.state.JoinRoom(chat.NewUser("bob", "general", "c2"))
	s.state.JoinRoom(chat.NewUser("carol", "lobby", "c3"))

	s.hub.deliver([]chat.Envelope{{
		Target:  chat.ToRoom("general"),
		Event:   chat.EventNewMessage,
		Payload: chat.NewChatMessage("alice", "hi", "general"),
	}})

	assert.Len(t, receivedEvents(t, c1), 1)
	assert.Len(t, receivedEvents(t, c2), 1)
	assert.Empty(t, receivedEvents(t, c3), "other rooms must not hear the message")
}

func TestDeliverRoomExceptExcludesOriginator(t *testing.T) {
	s := newTestServer(t)
	c1 := addStubClient(s, "c1")
	c2 := addStubClient(s, "c2")

	s.state.JoinRoom(chat.NewUser("alice", "general", "c1"))
	s.state.JoinRoom(chat.NewUser("bob", "general", "c2"))

	s.hub.deliver([]chat.Envelope{{
		Target:  chat.ToRoomExcept("general", "c1"),
		Event:   chat.EventUserTyping,
		Payload: chat.TypingNotification{Username: "alice", Room: "general", IsTyping: true},
	}})

	assert.Empty(t, receivedEvents(t, c1))
	assert.Equal(t, []string{chat.EventUserTyping}, receivedEvents(t, c2))
}

func TestDeliverBroadcastReachesUnjoinedConnections(t *testing.T) {
	s := newTestServer(t)
	c1 := addStubClient(s, "c1")
	c2 := addStubClient(s, "c2") // connected, never joined a room

	s.state.JoinRoom(chat.NewUser("alice", "general", "c1"))

	s.hub.deliver([]chat.Envelope{{
		Target:  chat.BroadcastExcept("c1"),
		Event:   chat.EventRoomsList,
		Payload: map[string]int{"general": 1},
	}})

	assert.Empty(t, receivedEvents(t, c1))
	assert.Equal(t, []string{chat.EventRoomsList}, receivedEvents(t, c2))
}

func TestDeliverPreservesEnvelopeOrderPerConnection(t *testing.T) {
	s := newTestServer(t)
	c1 := addStubClient(s, "c1")
	s.state.JoinRoom(chat.NewUser("alice", "general", "c1"))

	s.hub.deliver(s.coordinator.Join("c2", "bob", "general"))

	events := receivedEvents(t, c1)
	assert.Equal(t, []string{
		chat.EventRoomUsersUpdated,
		chat.EventUserJoined,
		chat.EventNewMessage,
		chat.EventRoomsList,
	}, events)
}

func TestDeliverDropsClientWithFullBuffer(t *testing.T) {
	s := newTestServer(t)
	c1 := addStubClient(s, "c1")
	s.state.JoinRoom(chat.NewUser("alice", "general", "c1"))

	for i := 0; i < sendBufferSize; i++ {
		c1.send <- []byte("{}")
	}

	s.hub.deliver([]chat.Envelope{{
		Target:  chat.ToConn("c1"),
		Event:   chat.EventRoomsList,
		Payload: map[string]int{},
	}})

	s.hub.mutex.RLock()
	_, stillThere := s.hub.clients["c1"]
	s.hub.mutex.RUnlock()
	assert.False(t, stillThere, "client with full buffer must be dropped")
	assert.True(t, c1.closed)
}

func TestHubShutdownStopsRunLoop(t *testing.T) {
	s := newTestServer(t)
	go s.hub.Run()

	s.hub.Dispatch([]chat.Envelope{{
		Target:  chat.Broadcast(),
		Event:   chat.EventRoomsList,
		Payload: map[string]int{},
	}})

	require.NoError(t, s.hub.Shutdown(time.Second))

	// Dispatch after shutdown must not block.
	done := make(chan struct{})
	go func() {
		s.hub.Dispatch([]chat.Envelope{{Target: chat.Broadcast(), Event: chat.EventRoomsList, Payload: map[string]int{}}})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked after shutdown")
	}
}
