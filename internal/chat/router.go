package chat

import (
	"errors"

	"go.uber.org/zap"
)

// Rejection reasons for inbound messages. Neither is surfaced to the
// sender; the message is dropped and the rejection logged.
var (
	// ErrUnknownSender rejects a message from a connection with no bound
	// user.
	ErrUnknownSender = errors.New("chat: message from unbound connection")
	// ErrRoomMismatch rejects a message addressed to a room the sender is
	// not currently in.
	ErrRoomMismatch = errors.New("chat: sender is not in the target room")
)

// Router validates and records chat messages and typing notifications and
// computes their fan-out.
type Router struct {
	state *State
	log   *zap.SugaredLogger
}

// NewRouter returns a Router over the given state.
func NewRouter(state *State, log *zap.SugaredLogger) *Router {
	return &Router{state: state, log: log}
}

// Send records a message from connID addressed to room and returns it with
// its fan-out. Delivery includes the sender: clients render the
// server-authoritative echo rather than appending optimistically. A
// rejection leaves history untouched.
func (r *Router) Send(connID, room, body string) (ChatMessage, []Envelope, error) {
	sender, ok := r.state.Lookup(connID)
	if !ok {
		r.log.Errorw("message from unknown connection", "conn_id", connID)
		return ChatMessage{}, nil, ErrUnknownSender
	}
	if sender.Room != room {
		r.log.Warnw("dropping message for a room the sender is not in",
			"username", sender.Username, "target_room", room, "current_room", sender.Room)
		return ChatMessage{}, nil, ErrRoomMismatch
	}

	msg := NewChatMessage(sender.Username, body, room)
	r.state.AppendMessage(msg)
	return msg, []Envelope{
		{Target: ToRoom(room), Event: EventNewMessage, Payload: msg},
	}, nil
}

// Typing reports connID's typing state to the other members of its room.
// Unbound connections produce nothing.
func (r *Router) Typing(connID string, isTyping bool) []Envelope {
	sender, ok := r.state.Lookup(connID)
	if !ok {
		return nil
	}
	return []Envelope{
		{Target: ToRoomExcept(sender.Room, connID), Event: EventUserTyping, Payload: TypingNotification{
			Username: sender.Username,
			Room:     sender.Room,
			IsTyping: isTyping,
		}},
	}
}
