// Package api serves the local status surface for on-site consumers: the
// display, the dashboard, and operators on the gateway's own network. It
// only reads snapshots from the core and has no logic of its own.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eddielth/sensor-gateway/gateway"
	"github.com/eddielth/sensor-gateway/logger"
)

// Server is the local HTTP status API
type Server struct {
	router *gin.Engine
	orch   *gateway.Orchestrator
	listen string
}

// NewServer builds the status API around the orchestrator's snapshot
func NewServer(listen string, orch *gateway.Orchestrator) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		router: gin.New(),
		orch:   orch,
		listen: listen,
	}
	s.router.Use(gin.Recovery())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	s.router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.orch.Status())
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Start serves until the context is cancelled
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:    s.listen,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("[api] status API listening on %s", s.listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
