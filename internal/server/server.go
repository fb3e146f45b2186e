// Package server exposes the school system's HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/loykin/schoolsys/internal/common"
	"github.com/loykin/schoolsys/internal/constants"
	"github.com/loykin/schoolsys/internal/metrics"
)

// PendingFunc reports how many changesets the database still lacks.
type PendingFunc func(ctx context.Context) (int, error)

// Options configures the HTTP server.
type Options struct {
	Addr            string
	ShutdownTimeout time.Duration
	// Pending backs /healthz; nil reports zero pending changesets.
	Pending PendingFunc
	Logger  *common.Logger
	// Metrics, when set, is served on metrics.DefaultPath and records
	// every request.
	Metrics *metrics.Collector
}

// Server wraps a gin engine and its http.Server.
type Server struct {
	opts   Options
	engine *gin.Engine
	logger *common.Logger
}

// New builds the router. It does not listen.
func New(opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = constants.DefaultServerAddr
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = constants.DefaultShutdownTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = common.GetLogger()
	}
	logger = logger.WithComponent("server")

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(logger, opts.Metrics))
	engine.Use(cors())

	s := &Server{opts: opts, engine: engine, logger: logger}
	engine.GET("/", s.handleRoot)
	engine.GET("/healthz", s.handleHealth)
	if opts.Metrics != nil {
		engine.GET(metrics.DefaultPath, gin.WrapH(opts.Metrics.Handler()))
	}
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": constants.WelcomeMessage})
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.opts.Pending == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "pending": 0})
		return
	}
	n, err := s.opts.Pending(c.Request.Context())
	if err != nil {
		s.logger.Warn("health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": common.MaskSensitiveData(err.Error())})
		return
	}
	s.opts.Metrics.SetPending(n)
	if n > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "pending", "pending": n})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "pending": 0})
}

// cors allows any origin and echoes requested headers.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET,HEAD,PUT,PATCH,POST,DELETE")
		if reqHeaders := c.GetHeader("Access-Control-Request-Headers"); reqHeaders != "" {
			h.Set("Access-Control-Allow-Headers", reqHeaders)
			h.Add("Vary", "Access-Control-Request-Headers")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func requestLogger(logger *common.Logger, m *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), elapsed)
		logger.WithRequest(c.Request.Method, c.Request.URL.Path).Debug("request",
			"status", c.Writer.Status(),
			"elapsed", elapsed)
	}
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
