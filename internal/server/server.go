package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/lox/voterps/internal/auth"
	"github.com/lox/voterps/internal/gameid"
)

// Server exposes the engine over HTTP and WebSocket.
type Server struct {
	engine    *Engine
	validator auth.Validator
	ids       *gameid.Generator
	clock     quartz.Clock
	upgrader  websocket.Upgrader
	router    *gin.Engine
	logger    *log.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithClock sets the clock driving connection pings.
func WithClock(clock quartz.Clock) Option {
	return func(s *Server) { s.clock = clock }
}

// WithIDGenerator sets the generator for session codes and connection IDs.
// Handlers call it concurrently, so its source must be safe for that.
func WithIDGenerator(ids *gameid.Generator) Option {
	return func(s *Server) { s.ids = ids }
}

// NewServer creates a server that feeds engine. A nil validator accepts
// the token as the player name.
func NewServer(engine *Engine, validator auth.Validator, logger *log.Logger, opts ...Option) *Server {
	if validator == nil {
		validator = auth.NewNoopValidator()
	}
	s := &Server{
		engine:    engine,
		validator: validator,
		ids:       gameid.NewGenerator(nil, nil),
		clock:     quartz.NewReal(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Tokens, not origins, gate access.
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger.WithPrefix("server"),
	}
	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/ws", s.handleWebSocket)
	router.GET("/health", s.handleHealth)
	router.GET("/sessions", s.handleListSessions)
	router.POST("/sessions", s.handleCreateSession)
	s.router = router

	return s
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting WebSocket server", "addr", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		s.logger.Info("Server stopped")
		return nil
	}
}

// handleWebSocket upgrades the request and registers the connection with
// the engine before any of its messages are read.
func (s *Server) handleWebSocket(c *gin.Context) {
	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	conn := NewConnection(s.ids.ConnID(), ws, s.engine, s.validator, s.clock, s.logger)
	if err := s.engine.Submit(c.Request.Context(), ConnectEvent{Conn: conn}); err != nil {
		s.logger.Warn("Rejected connection", "error", err)
		_ = ws.Close()
		return
	}
	conn.Start()
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

func (s *Server) handleListSessions(c *gin.Context) {
	sessions, err := s.engine.Summaries(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// handleCreateSession mints a fresh session code. The session itself is
// created by the first join that uses it.
func (s *Server) handleCreateSession(c *gin.Context) {
	c.JSON(http.StatusCreated, gin.H{"code": s.ids.Code()})
}
