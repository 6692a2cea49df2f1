// Package status serves a small read-only HTTP surface for operators.
package status

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xaenox/support-monitor/internal/intake"
	"github.com/xaenox/support-monitor/internal/usage"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	router  *gin.Engine
	usage   *usage.Tracker
	seen    *intake.SeenFilter
	started time.Time
	logger  *zap.Logger
}

func NewServer(tracker *usage.Tracker, seen *intake.SeenFilter, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		router:  router,
		usage:   tracker,
		seen:    seen,
		started: time.Now(),
		logger:  logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.health)
	s.router.GET("/usage", s.usageStats)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(c *gin.Context) {
	resp := gin.H{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	}
	if s.seen != nil {
		resp["seen_messages"] = s.seen.Len()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) usageStats(c *gin.Context) {
	if s.usage == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "usage tracking disabled"})
		return
	}
	snapshot := s.usage.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"model":              s.usage.Model(),
		"stats":              snapshot,
		"total_tokens":       snapshot.TotalTokens(),
		"estimated_cost_usd": s.usage.EstimateCost(),
	})
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Status server starting", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
