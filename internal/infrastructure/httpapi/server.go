package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"ProspectScanner/pkg/metrics"
)

const shutdownTimeout = 10 * time.Second

// NewRouter registers every route on a fresh gin engine.
func NewRouter(h *Handler, m *metrics.Manager, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger.With("component", "http")), observe(m))

	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(m.Handler()))

	donor := router.Group("/api/donor")
	donor.GET("/prospects", h.ListProspects)
	donor.GET("/prospects/lookup", h.LookupProspect)
	donor.POST("/crawl", h.StartCrawl)
	donor.POST("/score", h.ScoreProspects)
	donor.POST("/score/prospect", h.ScoreProspect)
	donor.POST("/model/retrain", h.RetrainModel)
	donor.GET("/dashboard/stats", h.DashboardStats)

	return router
}

func observe(m *metrics.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTPRequest(route, c.Request.Method, strconv.Itoa(c.Writer.Status()), time.Since(started))
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(started))
	}
}

// Serve runs the API on addr until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http: %w", err)
	}
	logger.Info("http server stopped")
	return nil
}
