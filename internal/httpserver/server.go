package httpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"sidehustle-shop/internal/catalog"
	"sidehustle-shop/internal/checkout"
	"sidehustle-shop/internal/config"
	"sidehustle-shop/internal/events"
	"sidehustle-shop/internal/logger"
	"sidehustle-shop/internal/metrics"
	"sidehustle-shop/internal/storage"
)

// Deps are the collaborators the HTTP surface is built on.
type Deps struct {
	Storage storage.Storage
	Bus     *events.Bus
	Catalog *catalog.Catalog
	// Gateway may be nil when no payment provider is configured.
	Gateway checkout.Gateway
	Metrics *metrics.ShopMetrics
}

// Server wraps the HTTP server setup.
type Server struct {
	httpServer *http.Server
	logger     *logger.Logger
}

// New builds a Server with every route registered.
func New(cfg *config.Config, logg *logger.Logger, deps Deps) (*Server, error) {
	closing := make(chan struct{})
	router, err := buildRouter(cfg, logg, deps, closing)
	if err != nil {
		return nil, err
	}

	httpSrv := &http.Server{
		Addr:              cfg.App.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	// Shutdown waits for active requests; event streams never finish on their own.
	var once sync.Once
	httpSrv.RegisterOnShutdown(func() { once.Do(func() { close(closing) }) })

	return &Server{
		httpServer: httpSrv,
		logger:     logg,
	}, nil
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on ln.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}

func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func readyHandler(st storage.Storage, gw checkout.Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		if st == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "reason": "storage not configured"})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()
		if err := storage.Ping(ctx, st); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "reason": "storage not reachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "ready",
			"checkout": gw != nil && gw.Available(ctx),
		})
	}
}

func validateDeps(deps Deps) error {
	if deps.Storage == nil {
		return fmt.Errorf("httpserver: storage is required")
	}
	if deps.Catalog == nil {
		return fmt.Errorf("httpserver: catalog is required")
	}
	return nil
}
