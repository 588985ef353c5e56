package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/pump-sim/backend/internal/api"
	"github.com/pump-sim/backend/internal/config"
	"github.com/pump-sim/backend/internal/logger"
	"github.com/pump-sim/backend/internal/metrics"
	"github.com/pump-sim/backend/internal/session"
	"github.com/pump-sim/backend/internal/web"
	flag "github.com/spf13/pflag"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.StringP("config", "c", "pumpsim.config.xml", "path to the XML or YAML config file")
	port := flag.IntP("port", "p", 0, "listen port (overrides config)")
	seed := flag.Int64("seed", 0, "series seed, 0 keeps the configured seed")
	logLevel := flag.String("log-level", "", "log level (overrides config)")
	printConfig := flag.Bool("print-config", false, "print the effective config as XML and exit")
	writeConfig := flag.String("write-config", "", "write the effective config to this path and exit")
	showVersion := flag.BoolP("version", "v", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("pumpsim %s (built %s)\n", Version, BuildTime)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if flag.CommandLine.Changed("port") {
		cfg.Server.Port = *port
	}
	if flag.CommandLine.Changed("seed") && *seed != 0 {
		cfg.Simulation.Seed = *seed
	}
	if *logLevel != "" {
		cfg.Advanced.LogLevel = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if *printConfig {
		data, err := cfg.XMLBytes()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode configuration: %v\n", err)
			os.Exit(1)
		}
		os.Stdout.Write(data)
		fmt.Println()
		return
	}
	if *writeConfig != "" {
		if err := cfg.Save(*writeConfig); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write configuration: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Configuration written to %s\n", *writeConfig)
		return
	}

	logger.Init(cfg.Advanced.LogLevel, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// Session: series, playback controller and analytics store
	sessionMgr := session.NewManager(cfg, session.WithMetrics(m))
	sess, err := sessionMgr.Start(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start session")
	}

	h := api.NewHandler(sessionMgr,
		api.WithMetrics(m),
		api.WithHeartbeat(cfg.GetHeartbeat()),
		api.WithVersion(Version),
	)
	wsHandler := api.NewWebSocketHandler(h, cfg.Advanced.WebSocketMaxMessageSize)

	// Check if running in embedded mode (viewer built into binary)
	embeddedMode := web.HasEmbeddedFiles()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	api.SetupMiddleware(e, cfg, embeddedMode)

	var metricsHandler http.Handler
	if cfg.Advanced.EnableMetrics {
		metricsHandler = m.Handler()
	}
	api.RegisterRoutes(e, h, wsHandler, metricsHandler)

	if embeddedMode {
		if err := web.RegisterStaticRoutes(e); err != nil {
			logger.Warn().Err(err).Msg("failed to register static routes")
		}
	}

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	info := sess.Info()
	logger.Info().
		Str("version", Version).
		Str("build", BuildTime).
		Str("config", *configPath).
		Str("listen", "http://"+cfg.GetServerAddr()).
		Str("session", info.ID).
		Int("frames", info.SeriesLength).
		Bool("embedded", embeddedMode).
		Bool("metrics", cfg.Advanced.EnableMetrics).
		Msg("pump simulation server starting")

	go func() {
		if err := e.StartServer(s); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// Closing the session ends open streams before the server drains.
	if err := sessionMgr.Close(); err != nil {
		logger.Warn().Err(err).Msg("session close")
	}
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown")
	}
}
