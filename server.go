package main

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"
	tsnetlog "tailscale.com/types/logger"
)

type TailscaleClient interface {
	ExpandSNIName(ctx context.Context, name string) (fqdn string, ok bool)
	Status(ctx context.Context) (*ipnstate.Status, error)
	StatusWithoutPeers(ctx context.Context) (*ipnstate.Status, error)
}

// Pinger is the part of the database pool the health check needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// readyPollInterval is how long checkTailscaleReady waits between polls.
var readyPollInterval = 5 * time.Second

func checkTailscaleReady(ctx context.Context, lc TailscaleClient, logger *slog.Logger) error {
	for {
		st, err := lc.Status(ctx)
		if err != nil {
			return fmt.Errorf("error retrieving tailscale status: %w", err)
		}

		switch st.BackendState {
		case "Running":
			nopeers, err := lc.StatusWithoutPeers(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "tailscale status without peers", slog.String("error", err.Error()))
				return nil
			}
			logger.InfoContext(ctx, "tsnet running", slog.Any("cert_domains", nopeers.CertDomains))
			return nil
		case "Stopped":
			logger.InfoContext(ctx, "tsnet stopped")
			return nil
		case "NeedsLogin":
			logger.InfoContext(ctx, "needs login to tailscale", slog.String("auth_url", st.AuthURL))
		default:
			logger.DebugContext(ctx, "waiting for tsnet", slog.String("state", st.BackendState))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(readyPollInterval):
		}
	}
}

type SponsorService struct {
	logger    *slog.Logger
	dbconn    Pinger
	queries   Querier
	tmpls     *template.Template
	telemetry *TelemetryConfig
	version   string
	gitSha    string
}

func NewSponsorService(logger *slog.Logger,
	dbconn Pinger,
	queries Querier,
	tmpls *template.Template,
	telemetry *TelemetryConfig,
	version string,
	gitSha string,
) *SponsorService {
	return &SponsorService{
		logger:    logger,
		dbconn:    dbconn,
		queries:   queries,
		tmpls:     tmpls,
		telemetry: telemetry,
		version:   version,
		gitSha:    gitSha,
	}
}

func NewTsNetServer(config *Config) *tsnet.Server {
	return &tsnet.Server{
		Dir:      filepath.Join(config.DataDir, "tsnet"),
		Hostname: config.Hostname,
		UserLogf: tsnetlog.Discard,
		Logf:     tsnetlog.Discard,
	}
}

func createHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       30 * time.Second,
	}
}

// listener pairs a server with the listener it serves and the name it is
// reachable under.
type listener struct {
	server *http.Server
	ln     net.Listener
	scheme string
	host   string
}

func startServer(l listener, logger *slog.Logger) {
	logger.Info(fmt.Sprintf("listening on %s://%s", l.scheme, l.host))
	if err := l.server.Serve(l.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error(fmt.Sprintf("%s server failed", l.scheme), slog.String("error", err.Error()))
	}
}

// waitForShutdown blocks until a signal arrives, then shuts every server
// down within 10 seconds.
func waitForShutdown(ctx context.Context, sigChan <-chan os.Signal, logger *slog.Logger, listeners ...listener) os.Signal {
	sig := <-sigChan
	logger.Info("shutting down gracefully", slog.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 10*time.Second)
	defer shutdownCancel()

	for _, l := range listeners {
		if err := l.server.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to gracefully shutdown server",
				slog.String("scheme", l.scheme),
				slog.String("error", err.Error()),
			)
		}
	}

	return sig
}
