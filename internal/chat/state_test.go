package chat

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindReplacesPriorBinding(t *testing.T) {
	s := NewState()

	first := NewUser("alice", "general", "c1")
	prev, replaced := s.Bind(first)
	assert.False(t, replaced)
	assert.Empty(t, prev.ConnID)

	second := NewUser("alice", "lobby", "c1")
	prev, replaced = s.Bind(second)
	require.True(t, replaced)
	assert.Equal(t, "general", prev.Room)

	got, ok := s.Lookup("c1")
	require.True(t, ok)
	assert.Equal(t, "lobby", got.Room)
}

func TestUnbindUnknownConnection(t *testing.T) {
	s := NewState()

	_, ok := s.Unbind("nope")
	assert.False(t, ok)

	_, ok = s.Lookup("nope")
	assert.False(t, ok)
}

func TestUnbindReturnsBoundUser(t *testing.T) {
	s := NewState()
	s.Bind(NewUser("bob", "general", "c2"))

	u, ok := s.Unbind("c2")
	require.True(t, ok)
	assert.Equal(t, "bob", u.Username)

	_, ok = s.Lookup("c2")
	assert.False(t, ok)
}

func TestAddMemberIsIdempotentPerConnection(t *testing.T) {
	s := NewState()

	s.AddMember("general", NewUser("alice", "general", "c1"))
	s.AddMember("general", NewUser("bob", "general", "c2"))
	// Re-adding c1 replaces in place rather than duplicating.
	s.AddMember("general", NewUser("alice2", "general", "c1"))

	members := s.Members("general")
	require.Len(t, members, 2)
	assert.Equal(t, "alice2", members[0].Username)
	assert.Equal(t, "bob", members[1].Username)
}

func TestRemoveMemberDropsEmptyRoomButKeepsHistory(t *testing.T) {
	s := NewState()
	s.AddMember("general", NewUser("alice", "general", "c1"))
	s.AppendMessage(NewChatMessage("alice", "hi", "general"))

	s.RemoveMember("general", "c1")

	assert.NotContains(t, s.RoomCounts(), "general")
	require.Len(t, s.History("general"), 1)
	assert.Equal(t, "hi", s.History("general")[0].Body)
}

func TestMembersSnapshotIsACopy(t *testing.T) {
	s := NewState()
	s.AddMember("general", NewUser("alice", "general", "c1"))

	snapshot := s.Members("general")
	snapshot[0].Username = "mallory"

	assert.Equal(t, "alice", s.Members("general")[0].Username)
}

func TestHistorySnapshotIsACopy(t *testing.T) {
	s := NewState()
	s.AppendMessage(NewChatMessage("alice", "hi", "general"))

	snapshot := s.History("general")
	snapshot[0].Body = "tampered"

	assert.Equal(t, "hi", s.History("general")[0].Body)
}

func TestHistoryPreservesInsertionOrder(t *testing.T) {
	s := NewState()
	for i := 0; i < 5; i++ {
		s.AppendMessage(NewChatMessage("alice", fmt.Sprintf("msg-%d", i), "general"))
	}

	history := s.History("general")
	require.Len(t, history, 5)
	for i, msg := range history {
		assert.Equal(t, fmt.Sprintf("msg-%d", i), msg.Body)
	}
}

func TestHistoryLimitKeepsMostRecent(t *testing.T) {
	s := NewState(WithHistoryLimit(3))
	for i := 0; i < 5; i++ {
		s.AppendMessage(NewChatMessage("alice", fmt.Sprintf("msg-%d", i), "general"))
	}

	history := s.History("general")
	require.Len(t, history, 3)
	assert.Equal(t, "msg-2", history[0].Body)
	assert.Equal(t, "msg-4", history[2].Body)
}

func TestJoinRoomMovesMembershipAtomically(t *testing.T) {
	s := NewState()

	s.JoinRoom(NewUser("alice", "general", "c1"))
	prev, switched := s.JoinRoom(NewUser("alice", "lobby", "c1"))

	require.True(t, switched)
	assert.Equal(t, "general", prev.Room)
	assert.Empty(t, s.Members("general"))
	require.Len(t, s.Members("lobby"), 1)

	counts := s.RoomCounts()
	assert.NotContains(t, counts, "general")
	assert.Equal(t, 1, counts["lobby"])
}

func TestRemoveConnUnknownIsNoOp(t *testing.T) {
	s := NewState()

	_, ok := s.RemoveConn("ghost")
	assert.False(t, ok)
}

func TestRoomCountsSnapshot(t *testing.T) {
	s := NewState()
	s.JoinRoom(NewUser("alice", "general", "c1"))
	s.JoinRoom(NewUser("bob", "general", "c2"))
	s.JoinRoom(NewUser("carol", "lobby", "c3"))

	assert.Equal(t, map[string]int{"general": 2, "lobby": 1}, s.RoomCounts())
}

// Connections hammering different rooms concurrently must never corrupt
// the single-membership invariant.
func TestConcurrentTransitionsKeepSingleMembership(t *testing.T) {
	s := NewState()

	const conns = 32
	var wg sync.WaitGroup
	for i := 0; i < conns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			connID := fmt.Sprintf("c%d", i)
			name := fmt.Sprintf("user%d", i)
			for j := 0; j < 50; j++ {
				s.JoinRoom(NewUser(name, fmt.Sprintf("room-%d", j%3), connID))
			}
		}(i)
	}
	wg.Wait()

	seen := map[string]int{}
	for room := range s.RoomCounts() {
		for _, m := range s.Members(room) {
			seen[m.ConnID]++
		}
	}
	require.Len(t, seen, conns)
	for connID, n := range seen {
		assert.Equalf(t, 1, n, "connection %s appears in %d rooms", connID, n)
	}
}
