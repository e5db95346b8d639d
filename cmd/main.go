package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gomcpgo/lithophane_client/pkg/client"
	"github.com/gomcpgo/lithophane_client/pkg/config"
	"github.com/gomcpgo/lithophane_client/pkg/flow"
	"github.com/gomcpgo/lithophane_client/pkg/handler"
	"github.com/gomcpgo/lithophane_client/pkg/metrics"
	"github.com/gomcpgo/lithophane_client/pkg/storage"
	"github.com/gomcpgo/lithophane_client/pkg/web"
)

// Version information (set by build script)
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
)

// Run modes
const (
	modeMCP = "mcp"
	modeWeb = "web"
	modeAll = "all"
)

// LithophaneServer wires the flow to its client, storage and metrics
type LithophaneServer struct {
	config  *config.Config
	logger  *zap.Logger
	client  *client.HTTPClient
	storage *storage.Storage
	metrics *metrics.Collector
	flow    *flow.Flow
}

// NewLithophaneServer builds the flow from a validated configuration
func NewLithophaneServer(cfg *config.Config, logger *zap.Logger) *LithophaneServer {
	collector := metrics.NewCollector(cfg.MetricsNamespace)
	store := storage.NewStorage(cfg.ArtifactsRoot)
	httpClient := client.NewHTTPClient(cfg.Endpoint,
		client.WithMaxArtifactSize(cfg.MaxArtifactSize()),
		client.WithLogger(logger),
	)

	f := flow.New(httpClient, store, flow.Options{
		Endpoint:            cfg.Endpoint,
		Parameters:          cfg.Parameters,
		ArtifactFilename:    cfg.ArtifactFilename,
		ArtifactContentType: cfg.ArtifactContentType,
		MissingFilePolicy:   cfg.MissingFilePolicy,
		InFlightPolicy:      cfg.InFlightPolicy,
		RequestTimeout:      cfg.Timeouts.Request,
		Logger:              logger,
		Metrics:             collector,
	})

	return &LithophaneServer{
		config:  cfg,
		logger:  logger,
		client:  httpClient,
		storage: store,
		metrics: collector,
		flow:    f,
	}
}

// Purge removes artifacts left under the root by earlier runs
func (s *LithophaneServer) Purge() error {
	if err := s.storage.ReleaseAll(); err != nil {
		return fmt.Errorf("failed to purge artifacts: %w", err)
	}
	s.logger.Info("purged stale artifacts", zap.String("artifacts_root", s.config.ArtifactsRoot))
	return nil
}

// Close tears the flow down and releases its artifact
func (s *LithophaneServer) Close() error {
	return s.flow.Close()
}

// Serve runs the selected surfaces until ctx is canceled or one of them fails
func (s *LithophaneServer) Serve(ctx context.Context, mode string) error {
	g, gctx := errgroup.WithContext(ctx)

	if mode == modeWeb || mode == modeAll {
		webServer, err := web.NewServer(web.Options{
			Flow:            s.flow,
			Storage:         s.storage,
			Metrics:         s.metrics,
			Logger:          s.logger,
			Debug:           s.config.DebugMode,
			ShutdownTimeout: s.config.Timeouts.Shutdown,
		})
		if err != nil {
			return err
		}
		g.Go(func() error {
			return webServer.Run(gctx, s.config.WebAddr)
		})
	}

	if mode == modeMCP || mode == modeAll {
		mcpServer := server.NewMCPServer("Lithophane Client", Version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		)
		handler.NewLithophaneHandler(s.flow, s.storage, s.config.Timeouts, s.logger).Register(mcpServer)

		stdio := server.NewStdioServer(mcpServer)
		stdio.SetErrorLogger(zap.NewStdLog(s.logger))
		g.Go(func() error {
			s.logger.Info("mcp server listening on stdio")
			err := stdio.Listen(gctx, os.Stdin, os.Stdout)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("mcp server failed: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}

func newLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	// stdout carries the MCP protocol
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

func main() {
	fs := pflag.NewFlagSet("lithophane", pflag.ExitOnError)
	versionFlag := fs.Bool("version", false, "Show version information")
	configPath := fs.String("config", "", "Path to a YAML configuration file")
	mode := fs.String("mode", modeMCP, "Surfaces to serve: mcp, web or all")
	inputImage := fs.StringP("input", "i", "", "Submit this image once and exit")
	outputFile := fs.StringP("output", "o", "", "Where to write the artifact in one-shot mode")
	endpoint := fs.String("endpoint", "", "Generate endpoint URL")
	brightness := fs.Float64("brightness", 0, "Brightness parameter sent with the image")
	webAddr := fs.String("web-addr", "", "Listen address for the web surface")
	purge := fs.Bool("purge", false, "Remove artifacts left by earlier runs before starting")
	fs.Parse(os.Args[1:])

	if *versionFlag {
		fmt.Printf("Lithophane Client\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		return
	}

	if *configPath != "" {
		os.Setenv("LITHOPHANE_CONFIG", *configPath)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *endpoint != "" {
		cfg.Endpoint = *endpoint
	}
	if fs.Changed("brightness") {
		cfg.Parameters.Brightness = *brightness
	}
	if *webAddr != "" {
		cfg.WebAddr = *webAddr
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.DebugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	srv := NewLithophaneServer(cfg, logger)
	if *purge {
		if err := srv.Purge(); err != nil {
			logger.Fatal("startup failed", zap.Error(err))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *inputImage != "" {
		err := runOnce(ctx, srv, *inputImage, *outputFile)
		srv.Close()
		if err != nil {
			fmt.Printf("❌ Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	switch *mode {
	case modeMCP, modeWeb, modeAll:
	default:
		logger.Fatal("unknown mode", zap.String("mode", *mode))
	}

	logger.Info("starting",
		zap.String("version", Version),
		zap.String("mode", *mode),
		zap.String("endpoint", cfg.Endpoint),
		zap.String("artifacts_root", cfg.ArtifactsRoot),
	)

	err = srv.Serve(ctx, *mode)
	if cerr := srv.Close(); cerr != nil {
		logger.Warn("failed to release artifact", zap.Error(cerr))
	}
	if err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
