// Package server exposes the game engine over HTTP and websocket. State
// lives in the store; the transport only authenticates sessions, forwards
// actions, and streams notification kinds.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/doko-game/doko/internal/event"
	"github.com/doko-game/doko/internal/game"
	"github.com/doko-game/doko/internal/store"
)

// Server routes HTTP and websocket traffic to the engine.
type Server struct {
	cfg      *Config
	store    store.Store
	engine   *game.Engine
	bus      *event.Bus
	logger   *log.Logger
	upgrader websocket.Upgrader

	httpServer *http.Server

	mu          sync.Mutex
	connections map[*Connection]bool
}

// New creates a server around an engine.
func New(cfg *Config, st store.Store, engine *game.Engine, bus *event.Bus, logger *log.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		store:  st,
		engine: engine,
		bus:    bus,
		logger: logger.WithPrefix("server"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		connections: make(map[*Connection]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/sitting", s.handleDealSitting)
	mux.HandleFunc("POST /api/sitting/{id}/next", s.handleStartNextGame)
	mux.HandleFunc("POST /api/game/{id}/play", s.handlePlayCard)
	mux.HandleFunc("GET /api/game/{id}/state", s.handleGameState)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		s.logger.Info("shutting down")

		s.mu.Lock()
		for conn := range s.connections {
			_ = conn.Close()
		}
		s.mu.Unlock()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (s *Server) register(conn *Connection) {
	s.mu.Lock()
	s.connections[conn] = true
	total := len(s.connections)
	s.mu.Unlock()
	s.logger.Info("client connected", "total", total)
}

func (s *Server) unregister(conn *Connection) {
	s.mu.Lock()
	delete(s.connections, conn)
	total := len(s.connections)
	s.mu.Unlock()
	s.logger.Info("client disconnected", "total", total)
}
