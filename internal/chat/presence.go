package chat

import (
	"fmt"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Coordinator orchestrates the join/leave/disconnect transitions and
// produces, for each one, the ordered notifications every affected party
// must receive. It never touches the network.
type Coordinator struct {
	state          *State
	log            *zap.SugaredLogger
	announceSwitch bool
}

// CoordinatorOption configures a Coordinator at construction time.
type CoordinatorOption func(*Coordinator)

// WithAnnounceSwitch makes an implicit room switch run the full leave
// sequence for the old room before the join sequence for the new one, so
// peers in the old room learn the user is gone. Off by default: old
// membership is removed silently.
func WithAnnounceSwitch(on bool) CoordinatorOption {
	return func(c *Coordinator) {
		c.announceSwitch = on
	}
}

// NewCoordinator returns a Coordinator over the given state.
func NewCoordinator(state *State, log *zap.SugaredLogger, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{state: state, log: log}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Join moves connID into room as username, creating the user binding and
// membership atomically. The returned envelopes are ordered: history and
// the join ack to the joiner, the refreshed member list to the whole room,
// the arrival notice and system message to the joiner's peers, and the
// refreshed room counts to everyone else connected.
func (c *Coordinator) Join(connID, username, room string) []Envelope {
	var out []Envelope
	if c.announceSwitch {
		if prev, ok := c.state.Lookup(connID); ok && prev.Room != room {
			out = c.depart(connID)
		}
	}

	user := NewUser(username, room, connID)
	if prev, switched := c.state.JoinRoom(user); switched {
		c.log.Infow("connection switched rooms",
			"conn_id", connID, "username", username,
			"from", prev.Room, "to", room)
	} else {
		c.log.Infow("connection joined room",
			"conn_id", connID, "username", username, "room", room)
	}

	members := c.state.Members(room)
	users := RoomUsers{
		Users: lo.Map(members, func(u User, _ int) string { return u.Username }),
		Count: len(members),
	}

	out = append(out,
		Envelope{Target: ToConn(connID), Event: EventRoomMessages, Payload: c.state.History(room)},
		Envelope{Target: ToConn(connID), Event: EventJoinedRoom, Payload: JoinAck{Room: room, Username: username}},
		Envelope{Target: ToRoom(room), Event: EventRoomUsersUpdated, Payload: users},
		Envelope{Target: ToRoomExcept(room, connID), Event: EventUserJoined, Payload: UserJoined{
			Username:  username,
			Room:      room,
			UserCount: users.Count,
		}},
	)

	sys := newSystemMessage(room, fmt.Sprintf("%s has joined the room.", username))
	c.state.AppendMessage(sys)
	out = append(out,
		Envelope{Target: ToRoomExcept(room, connID), Event: EventNewMessage, Payload: sys},
		Envelope{Target: BroadcastExcept(connID), Event: EventRoomsList, Payload: c.state.RoomCounts()},
	)
	return out
}

// Leave removes connID's user from its room on explicit request. Unknown
// connections are a silent no-op.
func (c *Coordinator) Leave(connID string) []Envelope {
	return c.depart(connID)
}

// Disconnect removes connID's user after transport-level connection loss.
// The notification sequence is identical to an explicit leave.
func (c *Coordinator) Disconnect(connID string) []Envelope {
	return c.depart(connID)
}

func (c *Coordinator) depart(connID string) []Envelope {
	user, ok := c.state.RemoveConn(connID)
	if !ok {
		return nil
	}
	c.log.Infow("connection left room",
		"conn_id", connID, "username", user.Username, "room", user.Room)

	var out []Envelope
	members := c.state.Members(user.Room)
	// Per-room notifications are pointless when the leaver was the last
	// member; the global room list below still goes out.
	if len(members) > 0 {
		users := RoomUsers{
			Users: lo.Map(members, func(u User, _ int) string { return u.Username }),
			Count: len(members),
		}
		out = append(out,
			Envelope{Target: ToRoom(user.Room), Event: EventRoomUsersUpdated, Payload: users},
			Envelope{Target: ToRoom(user.Room), Event: EventUserLeft, Payload: UserLeft{
				Username:  user.Username,
				Room:      user.Room,
				UserCount: users.Count,
			}},
		)
		sys := newSystemMessage(user.Room, fmt.Sprintf("%s has left the room.", user.Username))
		c.state.AppendMessage(sys)
		out = append(out, Envelope{Target: ToRoom(user.Room), Event: EventNewMessage, Payload: sys})
	}
	out = append(out, Envelope{Target: BroadcastExcept(connID), Event: EventRoomsList, Payload: c.state.RoomCounts()})
	return out
}

// RoomsInfo reports member counts for every occupied room; it backs the
// polling endpoint and the connect greeting.
func (c *Coordinator) RoomsInfo() map[string]int {
	return c.state.RoomCounts()
}
