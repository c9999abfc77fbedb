package chat

// Wire event names. These shapes are part of the client protocol and must
// not change without versioning.
const (
	EventRoomsList        = "rooms_list"
	EventRoomMessages     = "room_messages"
	EventJoinedRoom       = "joined_room"
	EventRoomUsersUpdated = "room_users_updated"
	EventUserJoined       = "user_joined"
	EventUserLeft         = "user_left"
	EventNewMessage       = "new_message"
	EventUserTyping       = "user_typing"
)

// Scope selects the audience of an outbound event.
type Scope int

const (
	// ScopeConn targets a single connection.
	ScopeConn Scope = iota
	// ScopeRoom targets the current members of a room.
	ScopeRoom
	// ScopeAll targets every live connection, in or out of a room.
	ScopeAll
)

// Target names the audience of an Envelope symbolically. Room and
// broadcast targets are resolved against live membership at delivery time;
// Exclude drops one connection from the audience (typically the
// originator).
type Target struct {
	Scope   Scope
	Room    string
	Conn    string
	Exclude string
}

// ToConn targets a single connection.
func ToConn(connID string) Target {
	return Target{Scope: ScopeConn, Conn: connID}
}

// ToRoom targets every current member of room.
func ToRoom(room string) Target {
	return Target{Scope: ScopeRoom, Room: room}
}

// ToRoomExcept targets every current member of room except connID.
func ToRoomExcept(room, connID string) Target {
	return Target{Scope: ScopeRoom, Room: room, Exclude: connID}
}

// Broadcast targets every live connection.
func Broadcast() Target {
	return Target{Scope: ScopeAll}
}

// BroadcastExcept targets every live connection except connID.
func BroadcastExcept(connID string) Target {
	return Target{Scope: ScopeAll, Exclude: connID}
}

// Envelope is one outbound event: who receives it, which event name it
// carries, and the payload to serialize. Coordinator and Router return
// envelope lists in delivery order instead of writing to the network
// themselves, which keeps state transitions testable without a transport.
type Envelope struct {
	Target  Target
	Event   string
	Payload any
}
