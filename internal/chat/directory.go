package chat

import "github.com/samber/lo"

// Room directory: the membership and history side of State. Rooms are
// created implicitly on first join and dropped once empty; history is
// append-only and outlives the room.

// AddMember appends u to room's membership. Re-adding a connection that is
// already a member replaces its entry in place rather than duplicating it.
func (s *State) AddMember(room string, u User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.addMemberLocked(room, u)
}

// RemoveMember removes the member with connID from room. When the last
// member goes, the room entry is deleted; its history entry is retained.
func (s *State) RemoveMember(room, connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeMemberLocked(room, connID)
}

// Members returns a snapshot of room's membership in join order. Unknown
// rooms yield an empty slice.
func (s *State) Members(room string) []User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]User(nil), s.rooms[room]...)
}

// AppendMessage appends m to the history of m.Room, creating the history
// list on first use.
func (s *State) AppendMessage(m ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.appendMessageLocked(m)
}

// History returns a snapshot of room's messages in insertion order.
func (s *State) History(room string) []ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]ChatMessage(nil), s.history[room]...)
}

// RoomCounts returns member counts for every currently occupied room.
func (s *State) RoomCounts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return lo.MapValues(s.rooms, func(members []User, _ string) int {
		return len(members)
	})
}
