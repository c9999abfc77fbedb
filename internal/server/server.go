package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/socketchat/relay/internal/chat"
)

// Server assembles the boundary: shared chat state, the coordinator and
// router over it, the hub, and the HTTP surface. Every dependency is built
// here and injected; nothing in the package is global.
type Server struct {
	cfg *Config
	log *zap.SugaredLogger

	state       *chat.State
	coordinator *chat.Coordinator
	router      *chat.Router
	hub         *Hub

	upgrader   websocket.Upgrader
	validate   *validator.Validate
	httpServer *http.Server
}

// New wires a Server from configuration. Start runs it; tests can instead
// mount Routes on a test server and drive the hub directly.
func New(cfg *Config, log *zap.SugaredLogger) *Server {
	state := chat.NewState(chat.WithHistoryLimit(cfg.HistoryLimit))
	origins := newOriginPolicy(cfg.AllowedOrigins, log)

	s := &Server{
		cfg:         cfg,
		log:         log,
		state:       state,
		coordinator: chat.NewCoordinator(state, log, chat.WithAnnounceSwitch(cfg.AnnounceRoomSwitch)),
		router:      chat.NewRouter(state, log),
		hub:         NewHub(state, log),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.checkOrigin,
		},
		validate: validator.New(),
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Port,
		Handler:      s.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Routes returns the relay's HTTP mux: the chat page, the websocket
// endpoint, the health check, and the room polling endpoint.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/rooms", s.handleRooms)
	return mux
}

// Hub exposes the hub for shutdown coordination and tests.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start runs the hub and the HTTP server, blocking until an interrupt
// triggers graceful shutdown or the listener fails.
func (s *Server) Start() error {
	go s.hub.Run()
	s.log.Infow("hub started")

	idleConnsClosed := make(chan struct{})
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt)
		<-sigint

		s.log.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.log.Errorw("http server shutdown", "error", err)
		}

		if err := s.hub.Shutdown(s.cfg.ShutdownTimeout); err != nil {
			s.log.Errorw("hub shutdown", "error", err)
		}
		close(idleConnsClosed)
	}()

	s.log.Infow("starting HTTP server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}

	<-idleConnsClosed
	s.log.Info("server stopped")
	return nil
}
