package server

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/valyala/fastjson"
)

// Inbound event names accepted from clients.
const (
	eventJoinRoom    = "join_room"
	eventLeaveRoom   = "leave_room"
	eventSendMessage = "send_message"
	eventTyping      = "typing"
	eventStopTyping  = "stop_typing"
)

// frame is the wire envelope in both directions: an event name plus an
// event-specific payload.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// joinRoomData carries join_room and leave_room requests. leave_room only
// needs the connection itself, but existing clients send the same shape as
// join_room, so both fields stay accepted.
type joinRoomData struct {
	Room     string `json:"room" validate:"required,max=128"`
	Username string `json:"username" validate:"required,max=64"`
}

type sendMessageData struct {
	Message string `json:"message" validate:"required,max=2000"`
	Room    string `json:"room" validate:"required,max=128"`
}

// decodeFrame parses and shape-checks an inbound frame. Raw bytes are
// validated as JSON first so that garbage is refused before any decode
// work; malformed input never reaches the core.
func decodeFrame(raw []byte) (frame, error) {
	if err := fastjson.ValidateBytes(raw); err != nil {
		return frame{}, fmt.Errorf("malformed frame: %w", err)
	}
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return frame{}, fmt.Errorf("decoding frame: %w", err)
	}
	if strings.TrimSpace(f.Event) == "" {
		return frame{}, fmt.Errorf("frame has no event name")
	}
	return f, nil
}

// decodePayload unmarshals a frame payload into dst and runs its
// validation tags.
func decodePayload(validate *validator.Validate, data json.RawMessage, dst any) error {
	if len(data) == 0 {
		return fmt.Errorf("missing payload")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decoding payload: %w", err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}

// encodeFrame serializes an outbound event for delivery.
func encodeFrame(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", event, err)
	}
	return json.Marshal(frame{Event: event, Data: data})
}

// isExpectedCloseError reports whether an error is part of normal
// connection teardown and not worth logging loudly.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "use of closed network connection") ||
		strings.Contains(msg, "websocket: close sent") ||
		strings.Contains(msg, "broken pipe")
}
