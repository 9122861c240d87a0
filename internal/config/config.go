// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database paths, the inbound ingest
// secret, dashboard forwarding, rate limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-ingest-gateway")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// DashboardConfig defines the outbound connection to the external dashboard.
// The struct is built once at startup and injected into the forwarder; there
// is no ambient "is the dashboard configured" global.
type DashboardConfig struct {
	BaseURL     string        // DASHBOARD_BASE_URL; empty disables forwarding
	APIKey      string        // DASHBOARD_API_KEY (distinct from INGEST_KEY)
	Timeout     time.Duration // per-attempt request timeout
	MaxAttempts int           // delivery attempts before marking failed (>= 1)
	BackoffBase time.Duration // initial backoff interval between retries
	BackoffMax  time.Duration // upper bound for a single backoff interval
}

// Configured reports whether forwarding is enabled at all.
func (d DashboardConfig) Configured() bool {
	return strings.TrimSpace(d.BaseURL) != ""
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// App
	DBPath            string        // SQLite path
	IngestKey         string        // shared secret for X-INGEST-KEY; empty leaves ingestion unconfigured
	DedupTTL          time.Duration // how long a dedup key keeps rejecting duplicates
	StatusRecentLimit int           // default item count for status endpoints

	// Dashboard forwarding
	Dashboard DashboardConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		// App
		DBPath:            getenv("DB_PATH", "gateway.db"),
		IngestKey:         getenv("INGEST_KEY", ""),
		DedupTTL:          getdur("DEDUP_TTL", 24*time.Hour),
		StatusRecentLimit: getint("STATUS_RECENT_LIMIT", 10),

		// Dashboard forwarding
		Dashboard: DashboardConfig{
			BaseURL:     strings.TrimRight(getenv("DASHBOARD_BASE_URL", ""), "/"),
			APIKey:      getenv("DASHBOARD_API_KEY", ""),
			Timeout:     getdur("DASHBOARD_TIMEOUT", 3*time.Second),
			MaxAttempts: getint("DASHBOARD_MAX_ATTEMPTS", 3),
			BackoffBase: getdur("DASHBOARD_BACKOFF_BASE", 200*time.Millisecond),
			BackoffMax:  getdur("DASHBOARD_BACKOFF_MAX", 2*time.Second),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 20.0),
		RateBurst: getint("RATE_BURST", 40),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-ingest-gateway"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.DedupTTL <= 0 {
		return cfg, errors.New("DEDUP_TTL must be > 0")
	}
	if cfg.StatusRecentLimit < 1 {
		return cfg, errors.New("STATUS_RECENT_LIMIT must be >= 1")
	}
	if cfg.Dashboard.Configured() && strings.TrimSpace(cfg.Dashboard.APIKey) == "" {
		return cfg, errors.New("DASHBOARD_API_KEY must be set when DASHBOARD_BASE_URL is configured")
	}
	if cfg.Dashboard.Timeout <= 0 {
		return cfg, errors.New("DASHBOARD_TIMEOUT must be > 0")
	}
	if cfg.Dashboard.MaxAttempts < 1 {
		return cfg, errors.New("DASHBOARD_MAX_ATTEMPTS must be >= 1")
	}
	if cfg.Dashboard.BackoffBase <= 0 || cfg.Dashboard.BackoffMax < cfg.Dashboard.BackoffBase {
		return cfg, errors.New("dashboard backoff intervals must be positive and BACKOFF_MAX >= BACKOFF_BASE")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
