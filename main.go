package main

import (
	"context"
	"embed"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"tailscale.com/hostinfo"
)

//go:embed tmpl/*.html
var templateFiles embed.FS

//go:embed static/*
var staticFiles embed.FS

var (
	configPath = flag.String("config", "", "Path to a YAML configuration file")
	hostname   = flag.String("hostname", "sponsor", "Hostname to use on your tailnet")
	dataDir    = flag.String("data-location", dataLocation(), "Configuration data location.")
	debug      = flag.Bool("debug", false, "Enable debug logging")
	tsnetLog   = flag.Bool("tsnet-log", false, "Enable tsnet logging")
	listenAddr = flag.String("listen", ":8080", "Address to listen on when not serving on the tailnet")
	tailnet    = flag.Bool("tailnet", false, "Serve on the tailnet with tsnet")
)

var (
	version = "dev"
	gitSha  = "no-commit"
)

// applyFlags overrides the configuration with the flags set on the command
// line, so file and environment values survive flag defaults.
func applyFlags(config *Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "hostname":
			config.Hostname = *hostname
		case "data-location":
			config.DataDir = *dataDir
		case "debug":
			config.LogDebug = *debug
		case "tsnet-log":
			config.TsnetLog = *tsnetLog
		case "listen":
			config.ListenAddr = *listenAddr
		case "tailnet":
			config.Tailnet = *tailnet
		}
	})
}

func main() {
	flag.Parse()
	os.Exit(run())
}

func run() int {
	hostinfo.SetApp("tsponsor")

	logLevel := slog.LevelInfo
	logger := newLogger(logLevel, nil)

	config, err := LoadConfig(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", slog.String("error", err.Error()))
		return 1
	}
	applyFlags(config)
	config.ServiceVersion = version

	if err := config.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		return 1
	}

	if config.LogDebug {
		logLevel = slog.LevelDebug
		logger = newLogger(logLevel, nil)
	}
	config.Logger = logger

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetry, shutdownTelemetry, err := setupTelemetry(ctx, config)
	if err != nil {
		logger.Error("failed to set up telemetry", slog.String("error", err.Error()))
		return 1
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Error("failed to shut down telemetry", slog.String("error", err.Error()))
		}
	}()

	if telemetry.LogHandler != nil {
		logger = newLogger(logLevel, telemetry.LogHandler)
	}

	host, _ := os.Hostname()
	versionGauge.With(prometheus.Labels{"version": version, "git_commit": gitSha, "hostname": host}).Set(1)
	telemetry.Metrics.VersionGauge.Record(ctx, 1, metric.WithAttributes(
		attribute.String("version", version),
		attribute.String("git_commit", gitSha),
	))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	pool, err := setupDatabase(ctx, config, logger)
	if err != nil {
		logger.Error("failed to set up database", slog.String("error", err.Error()))
		return 1
	}
	defer pool.Close()

	tmpls, err := setupTemplates()
	if err != nil {
		logger.Error("failed to load templates", slog.String("error", err.Error()))
		return 1
	}

	svc := NewSponsorService(
		logger,
		pool,
		NewTracedQueries(New(pool), telemetry),
		tmpls,
		telemetry,
		version,
		gitSha,
	)

	csrf := NewCSRFProtector(logger)
	go csrf.Run(ctx)

	handler, closeRoutes := SetupRoutes(svc, config, csrf)
	defer closeRoutes()

	var listeners []listener
	if config.Tailnet {
		s, err := setupTsNetServer(ctx, config, logger)
		if err != nil {
			logger.Error("failed to start tsnet", slog.String("error", err.Error()))
			return 1
		}
		defer s.Close()

		listeners, err = tailnetListeners(ctx, s, config, logger, handler)
		if err != nil {
			logger.Error("failed to listen on the tailnet", slog.String("error", err.Error()))
			return 1
		}
	} else {
		listeners, err = tcpListener(config, handler)
		if err != nil {
			logger.Error("failed to listen", slog.String("error", err.Error()))
			return 1
		}
	}

	for _, l := range listeners {
		defer l.ln.Close()
		go startServer(l, logger)
	}

	sig := waitForShutdown(ctx, sigChan, logger, listeners...)
	if sigNum, ok := sig.(syscall.Signal); ok {
		return 128 + int(sigNum)
	}
	return 0
}
