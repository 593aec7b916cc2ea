package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"gopkg.in/yaml.v3"
)

type Config struct {
	LogDebug          bool         `yaml:"debug"`
	Logger            *slog.Logger `yaml:"-"`
	ServiceName       string       `yaml:"service_name"`
	ServiceVersion    string       `yaml:"-"`
	TraceMaxBatchSize int          `yaml:"trace_max_batch_size"`
	TraceSampleRate   float64      `yaml:"trace_sample_rate"`
	OTLP              bool         `yaml:"otlp"`

	DatabaseURL string `yaml:"database_url"`
	ListenAddr  string `yaml:"listen"`
	Tailnet     bool   `yaml:"tailnet"`
	Hostname    string `yaml:"hostname"`
	DataDir     string `yaml:"data_dir"`
	TsnetLog    bool   `yaml:"tsnet_log"`

	CSRF             bool              `yaml:"csrf"`
	RateLimit        RateLimitSettings `yaml:"rate_limit"`
	MetricsAllowlist []string          `yaml:"metrics_allowlist"`
}

type RateLimitSettings struct {
	Enabled           bool     `yaml:"enabled"`
	RequestsPerSecond float64  `yaml:"requests_per_second"`
	Burst             int      `yaml:"burst"`
	TrustedProxies    []string `yaml:"trusted_proxies"`
}

func defaultConfig() *Config {
	return &Config{
		LogDebug:          false,
		ServiceName:       "tsponsor",
		TraceMaxBatchSize: 512,
		TraceSampleRate:   1.0,
		OTLP:              false,
		ListenAddr:        ":8080",
		Hostname:          "sponsor",
		DataDir:           dataLocation(),
		CSRF:              true,
		RateLimit: RateLimitSettings{
			Enabled:           true,
			RequestsPerSecond: 10,
			Burst:             20,
		},
		MetricsAllowlist: []string{"127.0.0.1", "::1"},
	}
}

// LoadConfig builds the configuration from defaults, the optional YAML file
// at path, then the environment. Command-line flags are applied by main.
func LoadConfig(path string) (*Config, error) {
	return loadConfig(path, os.LookupEnv)
}

func loadConfig(path string, lookup func(string) (string, bool)) (*Config, error) {
	config := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	if v, ok := lookup("DATABASE_URL"); ok {
		config.DatabaseURL = v
	}
	if v, ok := lookup("TSNET_HOSTNAME"); ok {
		config.Hostname = v
	}
	if v, ok := lookup("DATA_DIR"); ok {
		config.DataDir = v
	}
	if v, ok := lookup("LISTEN_ADDR"); ok {
		config.ListenAddr = v
	}
	if v, ok := lookup("OTEL_EXPORTER_OTLP_ENDPOINT"); ok && v != "" {
		config.OTLP = true
	}

	return config, nil
}

// Validate reports every setting that cannot be used to start the server.
func (c *Config) Validate() error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("database url is required (DATABASE_URL)"))
	}
	if !c.Tailnet && c.ListenAddr == "" {
		errs = append(errs, errors.New("listen address is required unless serving on the tailnet"))
	}
	if c.Tailnet && c.Hostname == "" {
		errs = append(errs, errors.New("hostname is required when serving on the tailnet"))
	}
	if c.TraceSampleRate < 0 || c.TraceSampleRate > 1 {
		errs = append(errs, fmt.Errorf("trace sample rate %v is outside [0, 1]", c.TraceSampleRate))
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		errs = append(errs, errors.New("rate limit requires a positive rate and burst"))
	}

	return errors.Join(errs...)
}

// PoolConfig function with error handling
func PoolConfig(dsn string, logger *slog.Logger) (*pgxpool.Config, error) {
	const defaultMaxConns = int32(4)
	const defaultMinConns = int32(0)
	const defaultMaxConnLifetime = time.Hour
	const defaultMaxConnIdleTime = time.Minute * 15
	const defaultHealthCheckPeriod = time.Minute
	const defaultConnectTimeout = time.Second * 5

	if logger == nil {
		logger = slog.Default()
	}

	dbConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database configuration: %w", err)
	}

	dbConfig.MaxConns = defaultMaxConns
	dbConfig.MinConns = defaultMinConns
	dbConfig.MaxConnLifetime = defaultMaxConnLifetime
	dbConfig.MaxConnIdleTime = defaultMaxConnIdleTime
	dbConfig.HealthCheckPeriod = defaultHealthCheckPeriod
	dbConfig.ConnConfig.ConnectTimeout = defaultConnectTimeout

	dbConfig.BeforeConnect = func(ctx context.Context, c *pgx.ConnConfig) error {
		logger.Debug("creating connection")
		return nil
	}

	dbConfig.AfterConnect = func(ctx context.Context, c *pgx.Conn) error {
		logger.Debug("connection created")
		return nil
	}

	dbConfig.BeforeAcquire = func(ctx context.Context, c *pgx.Conn) bool {
		logger.Debug("acquiring connection from pool")
		return true
	}

	dbConfig.AfterRelease = func(c *pgx.Conn) bool {
		logger.Debug("releasing connection to pool")
		return true
	}

	dbConfig.BeforeClose = func(c *pgx.Conn) {
		logger.Debug("closing connection")
	}

	return dbConfig, nil
}
