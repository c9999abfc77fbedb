package server

import (
	"encoding/json"
	"net/http"

	"github.com/rs/xid"
	"go.uber.org/zap"
)

// handleWebSocket upgrades the request, mints an opaque connection id, and
// hands the connection to the hub. The hub starts the pumps and sends the
// room-list greeting.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnw("websocket upgrade failed", "addr", r.RemoteAddr, "error", err)
		return
	}

	client := newClient(xid.New().String(), conn, s, r.RemoteAddr)
	s.hub.Register(client)
}

// handleHealth reports liveness as JSON.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.log, map[string]string{
		"status":  "ok",
		"message": "Chat server is running",
	})
}

// handleRooms serves the room->occupancy mapping for polling clients.
func (s *Server) handleRooms(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.log, s.coordinator.RoomsInfo())
}

func writeJSON(w http.ResponseWriter, log *zap.SugaredLogger, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warnw("error writing json response", "error", err)
	}
}
