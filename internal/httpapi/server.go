// Package httpapi exposes an operational HTTP surface: a liveness endpoint
// and a status snapshot of the queue and the dialogue sessions.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/book-expert/logger"
	"github.com/gin-gonic/gin"

	"github.com/gohar-studio/voice-engine/internal/dialogue"
	"github.com/gohar-studio/voice-engine/internal/scheduler"
)

const shutdownTimeout = 5 * time.Second

// StatusResponse is the /v1/status payload.
type StatusResponse struct {
	QueueDepth     int  `json:"queue_depth"`
	Executing      int  `json:"executing"`
	ActiveSessions int  `json:"active_sessions"`
	SpeechBackend  bool `json:"speech_backend_healthy"`
}

// HealthChecker reports whether the speech backend is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server serves the operational endpoints.
type Server struct {
	scheduler *scheduler.Scheduler
	sessions  *dialogue.Manager
	speech    HealthChecker
	log       *logger.Logger
	addr      string
}

// New creates a Server listening on addr.
func New(
	addr string,
	sched *scheduler.Scheduler,
	sessions *dialogue.Manager,
	speech HealthChecker,
	log *logger.Logger,
) *Server {
	return &Server{
		scheduler: sched,
		sessions:  sessions,
		speech:    speech,
		log:       log,
		addr:      addr,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", s.health)

	v1 := router.Group("/v1")
	{
		v1.GET("/status", s.status)
	}

	return router
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		serveErr := httpServer.ListenAndServe()
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
	}()

	s.log.System("Status server listening on %s", s.addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return httpServer.Shutdown(shutdownCtx)
	case serveErr := <-errCh:
		return serveErr
	}
}

// health returns liveness status.
func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "voice-engine",
	})
}

// status returns a point-in-time snapshot of the engine.
func (s *Server) status(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	healthy := s.speech.HealthCheck(ctx) == nil

	c.JSON(http.StatusOK, StatusResponse{
		QueueDepth:     s.scheduler.QueueDepth(),
		Executing:      s.scheduler.Executing(),
		ActiveSessions: s.sessions.ActiveSessions(),
		SpeechBackend:  healthy,
	})
}
