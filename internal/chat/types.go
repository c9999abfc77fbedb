// Package chat implements the room and presence state shared by every
// WebSocket connection: who is bound to which connection, which room they
// occupy, and what has been said there. Handlers mutate this state through
// the Coordinator and Router types and receive back the ordered set of
// events to deliver; actual delivery is the transport's job.
package chat

import (
	"time"

	"github.com/google/uuid"
)

// SystemUsername authors the synthetic join/leave announcements stored in
// room history alongside regular messages.
const SystemUsername = "System"

// User binds a username to a live connection. One User exists per
// connection at a time; it is created on join and destroyed on leave or
// disconnect. The Room field and the room's membership list are updated
// together, never independently.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Room     string `json:"room"`
	ConnID   string `json:"connection_id"`
}

// NewUser mints a User with a fresh id for the given connection.
func NewUser(username, room, connID string) User {
	return User{
		ID:       uuid.NewString(),
		Username: username,
		Room:     room,
		ConnID:   connID,
	}
}

// ChatMessage is an immutable chat event. The body serializes as "message"
// for compatibility with existing clients.
type ChatMessage struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Body      string `json:"message"`
	Room      string `json:"room"`
	Timestamp int64  `json:"timestamp"`
}

// NewChatMessage mints a ChatMessage with a fresh id and the current unix
// timestamp.
func NewChatMessage(username, body, room string) ChatMessage {
	return ChatMessage{
		ID:        uuid.NewString(),
		Username:  username,
		Body:      body,
		Room:      room,
		Timestamp: time.Now().Unix(),
	}
}

func newSystemMessage(room, body string) ChatMessage {
	return NewChatMessage(SystemUsername, body, room)
}

// JoinAck acknowledges a successful join to the joining connection.
type JoinAck struct {
	Room     string `json:"room"`
	Username string `json:"username"`
}

// RoomUsers carries the full membership of a room in join order.
type RoomUsers struct {
	Users []string `json:"users"`
	Count int      `json:"count"`
}

// UserJoined notifies existing members that someone entered their room.
type UserJoined struct {
	Username  string `json:"username"`
	Room      string `json:"room"`
	UserCount int    `json:"user_count"`
}

// UserLeft notifies remaining members that someone left their room.
type UserLeft struct {
	Username  string `json:"username"`
	Room      string `json:"room"`
	UserCount int    `json:"user_count"`
}

// TypingNotification reports a member's typing state to the rest of the
// room.
type TypingNotification struct {
	Username string `json:"username"`
	Room     string `json:"room"`
	IsTyping bool   `json:"is_typing"`
}
