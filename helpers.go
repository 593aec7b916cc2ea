package main

import (
	"context"
	"fmt"
	"html/template"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"tailscale.com/tsnet"

	"github.com/imeyer/tsponsor/migrations"
)

func createConfigDir(dir string) error {
	err := os.MkdirAll(dir, 0o700)
	if err != nil {
		return err
	}

	err = os.MkdirAll(filepath.Join(dir, "tsnet"), 0o700)
	if err != nil {
		return err
	}

	return nil
}

// newLogger returns the process logger. Logs go to the OTel bridge when a
// handler is supplied and to JSON on stdout otherwise.
func newLogger(logLevel slog.Level, handler slog.Handler) *slog.Logger {
	if handler == nil {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			AddSource: true,
			Level:     logLevel,
		})
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

func dataLocation() string {
	if dir, ok := os.LookupEnv("DATA_DIR"); ok {
		return dir
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return os.Getenv("DATA_DIR")
	}
	return filepath.Join(dir, "tailscale", "sponsor")
}

func formatTimestamp(ts pgtype.Timestamptz) string {
	if !ts.Valid {
		return ""
	}
	return ts.Time.UTC().Format("2006-01-02 15:04:05")
}

var templateFuncs = template.FuncMap{
	"timestamp": formatTimestamp,
}

func setupTemplates() (*template.Template, error) {
	tmpls, err := template.New("").Funcs(templateFuncs).ParseFS(templateFiles, "tmpl/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return tmpls, nil
}

// setupDatabase opens the pool and applies pending migrations.
func setupDatabase(ctx context.Context, config *Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := PoolConfig(config.DatabaseURL, logger)
	if err != nil {
		return nil, err
	}

	dbCtx, dbCancel := context.WithTimeout(ctx, 5*time.Second)
	defer dbCancel()

	pool, err := pgxpool.NewWithConfig(dbCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(dbCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	if err := migrations.Apply(ctx, db); err != nil {
		pool.Close()
		return nil, err
	}

	names, _ := migrations.Names()
	logger.InfoContext(ctx, "database ready", slog.Int("migrations", len(names)))
	return pool, nil
}

func setupTsNetServer(ctx context.Context, config *Config, logger *slog.Logger) (*tsnet.Server, error) {
	if err := createConfigDir(config.DataDir); err != nil {
		logger.Info(fmt.Sprintf("creating configuration directory (%s) failed: %v", config.DataDir, err), "data-dir", config.DataDir)
	}

	s := NewTsNetServer(config)

	if config.TsnetLog {
		s.UserLogf = log.Printf
		s.Logf = log.Printf
	}

	if err := s.Start(); err != nil {
		return nil, fmt.Errorf("start tsnet server: %w", err)
	}

	lc, err := s.LocalClient()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("tsnet local client: %w", err)
	}

	if err := checkTailscaleReady(ctx, lc, logger); err != nil {
		s.Close()
		return nil, fmt.Errorf("tsnet not ready: %w", err)
	}

	return s, nil
}

// tailnetListeners serves plain HTTP on :80 and HTTPS on :443 of the tailnet.
func tailnetListeners(ctx context.Context, s *tsnet.Server, config *Config, logger *slog.Logger, handler http.Handler) ([]listener, error) {
	ln, err := s.Listen("tcp", ":80")
	if err != nil {
		return nil, fmt.Errorf("create non-TLS listener: %w", err)
	}

	tln, err := s.ListenTLS("tcp", ":443")
	if err != nil {
		ln.Close()
		return nil, fmt.Errorf("create TLS listener: %w", err)
	}

	httpsHost := config.Hostname
	if lc, err := s.LocalClient(); err == nil {
		httpsHost = expandSNIName(ctx, lc, config.Hostname, logger)
	}

	return []listener{
		{server: createHTTPServer(":80", handler), ln: ln, scheme: "http", host: config.Hostname},
		{server: createHTTPServer(":443", handler), ln: tln, scheme: "https", host: httpsHost},
	}, nil
}

func tcpListener(config *Config, handler http.Handler) ([]listener, error) {
	ln, err := net.Listen("tcp", config.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", config.ListenAddr, err)
	}

	return []listener{
		{server: createHTTPServer(config.ListenAddr, handler), ln: ln, scheme: "http", host: ln.Addr().String()},
	}, nil
}

func expandSNIName(ctx context.Context, lc TailscaleClient, hostname string, logger *slog.Logger) string {
	sni, ok := lc.ExpandSNIName(ctx, hostname)
	if !ok {
		logger.Error("error expanding SNI name")
		return hostname
	}
	return sni
}
