// Package web serves the browser surface of the flow: an upload form, a JSON
// API and the artifact download route.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gomcpgo/lithophane_client/pkg/flow"
	"github.com/gomcpgo/lithophane_client/pkg/metrics"
	"github.com/gomcpgo/lithophane_client/pkg/storage"
)

// Options configures the web server
type Options struct {
	Flow            *flow.Flow
	Storage         *storage.Storage
	Metrics         *metrics.Collector
	Logger          *zap.Logger
	Debug           bool
	ShutdownTimeout time.Duration
	MaxUploadBytes  int64 // hard cap on upload request bodies
}

// Server wraps the gin engine
type Server struct {
	engine *gin.Engine
	opts   Options
	logger *zap.Logger
}

// NewServer builds the router with recovery, logging and CORS middlewares
func NewServer(opts Options) (*Server, error) {
	if opts.Flow == nil || opts.Storage == nil {
		return nil, fmt.Errorf("web server requires a flow and storage")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "web"))
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}

	if opts.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(loggingMiddleware(logger))
	engine.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}))

	s := &Server{engine: engine, opts: opts, logger: logger}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.engine.GET("/", s.handleIndex)
	s.engine.POST("/file", s.limitUpload, s.handleSelectFile)
	s.engine.POST("/submit", s.limitUpload, s.handleSubmit)
	s.engine.GET("/status", s.handleStatus)
	s.engine.GET("/artifacts/:id/:filename", s.handleDownload)
	if s.opts.Metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.opts.Metrics.Handler()))
	}
}

// Handler exposes the router for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is canceled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("web server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("web server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	s.logger.Info("web server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down web server: %w", err)
	}
	return nil
}

// limitUpload caps the request body so oversized uploads fail instead of
// spilling to disk
func (s *Server) limitUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUploadBytes)
	c.Next()
}

func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.Error(c.Errors.Last().Err))
		}
		logger.Info("http request", fields...)
	}
}
