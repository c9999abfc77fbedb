package chat

import "sync"

// State is the single consistency domain for connection bindings, room
// membership, and message history. One reader/writer lock guards all three
// maps so that a transition's paired updates (registry binding plus room
// membership) are atomic for readers as well as writers: no caller can
// observe a user bound to a connection without the matching membership
// entry, or vice versa.
//
// The finer-grained registry and directory operations live in registry.go
// and directory.go; the compound transitions below take the lock once and
// work on the unexported helpers.
type State struct {
	mu      sync.RWMutex
	users   map[string]User          // connection id -> bound user
	rooms   map[string][]User        // room -> members in join order
	history map[string][]ChatMessage // room -> messages, survives empty rooms

	historyLimit int
}

// StateOption configures a State at construction time.
type StateOption func(*State)

// WithHistoryLimit bounds each room's history to the most recent n
// messages. Zero (the default) keeps history unbounded.
func WithHistoryLimit(n int) StateOption {
	return func(s *State) {
		if n > 0 {
			s.historyLimit = n
		}
	}
}

// NewState returns an empty State ready for concurrent use.
func NewState(opts ...StateOption) *State {
	s := &State{
		users:   make(map[string]User),
		rooms:   make(map[string][]User),
		history: make(map[string][]ChatMessage),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// JoinRoom atomically binds u's connection and places u in u.Room. If the
// connection was already bound, its previous membership is removed first,
// emptied rooms included. Returns the previous binding when one existed.
func (s *State) JoinRoom(u User) (prev User, switched bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, switched = s.users[u.ConnID]
	if switched {
		s.removeMemberLocked(prev.Room, prev.ConnID)
	}
	s.users[u.ConnID] = u
	s.addMemberLocked(u.Room, u)
	return prev, switched
}

// RemoveConn atomically unbinds a connection and removes its room
// membership. The second return is false when the connection had no bound
// user, which callers treat as a no-op rather than an error.
func (s *State) RemoveConn(connID string) (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[connID]
	if !ok {
		return User{}, false
	}
	delete(s.users, connID)
	s.removeMemberLocked(u.Room, connID)
	return u, true
}

// addMemberLocked appends u to its room, replacing in place if the
// connection is already a member. Callers must hold the write lock.
func (s *State) addMemberLocked(room string, u User) {
	members := s.rooms[room]
	for i, m := range members {
		if m.ConnID == u.ConnID {
			members[i] = u
			return
		}
	}
	s.rooms[room] = append(members, u)
}

// removeMemberLocked removes the member with connID and deletes the room
// entry once it is empty; history is deliberately left in place so a later
// rejoin restores context. Callers must hold the write lock.
func (s *State) removeMemberLocked(room, connID string) {
	members, ok := s.rooms[room]
	if !ok {
		return
	}
	kept := members[:0]
	for _, m := range members {
		if m.ConnID != connID {
			kept = append(kept, m)
		}
	}
	if len(kept) == 0 {
		delete(s.rooms, room)
		return
	}
	s.rooms[room] = kept
}

func (s *State) appendMessageLocked(m ChatMessage) {
	msgs := append(s.history[m.Room], m)
	if s.historyLimit > 0 && len(msgs) > s.historyLimit {
		msgs = msgs[len(msgs)-s.historyLimit:]
	}
	s.history[m.Room] = msgs
}
