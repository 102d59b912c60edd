// Package api serves the ranking services over HTTP.
//
// Routes mirror the historical variomes endpoints: /api/rankLit,
// /api/rankVar, /api/fetchDoc and /api/status answer with the JSON bodies
// produced by the batch package. /metrics exposes Prometheus metrics and
// /healthz reports liveness.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Aman-CERP/variomes/internal/batch"
	"github.com/Aman-CERP/variomes/internal/config"
	"github.com/Aman-CERP/variomes/internal/logging"
	"github.com/Aman-CERP/variomes/internal/telemetry"
)

const contentTypeJSON = "application/json; charset=utf-8"

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 10 * time.Second

// Options wires a Server.
type Options struct {
	Config  *config.Config
	Service *batch.Service
	// Metrics may be nil; /metrics and /api/stats are then not routed.
	Metrics *telemetry.Metrics
	// Queries may be nil to disable query logging.
	Queries *logging.QueryLog
	Debug   bool
}

// Server is the HTTP front end.
type Server struct {
	cfg     *config.Config
	svc     *batch.Service
	metrics *telemetry.Metrics
	queries *logging.QueryLog
	router  *gin.Engine
	now     func() time.Time
}

// New creates a Server and registers its routes.
func New(opts Options) *Server {
	registerValidators()

	s := &Server{
		cfg:     opts.Config,
		svc:     opts.Service,
		metrics: opts.Metrics,
		queries: opts.Queries,
		now:     time.Now,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.observe())
	if opts.Debug {
		router.Use(gin.Logger())
	}

	apiGroup := router.Group("/api")
	{
		apiGroup.GET("/rankLit", s.handleRankLit)
		apiGroup.GET("/rankVar", s.handleRankVar)
		apiGroup.POST("/rankVar", s.handleRankVar)
		apiGroup.GET("/fetchDoc", s.handleFetchDoc)
		apiGroup.GET("/status", s.handleStatus)
		if s.metrics != nil {
			apiGroup.GET("/stats", s.handleStats)
		}
	}
	router.GET("/healthz", s.handleHealth)
	if s.metrics != nil {
		router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	s.router = router
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("api_server_started", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("api_server_stopping")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// observe records every request in the metrics and the debug log.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		if s.metrics != nil {
			s.metrics.ObserveHTTP(route, c.Writer.Status(), elapsed)
		}
		slog.Debug("http_request",
			slog.String("method", c.Request.Method),
			slog.String("route", route),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("elapsed", elapsed))
	}
}
