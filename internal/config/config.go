// Package config handles client configuration and environment loading.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Default endpoint locations on the application server.
const (
	DefaultHost        = "http://localhost:8000"
	DefaultRPCEndpoint = "/api/rpc/v0/"
	DefaultRESTPrefix  = "/api/db/v0/"
)

// SandboxConfig holds settings for the local sandbox API server.
type SandboxConfig struct {
	ListenAddr         string   // HTTP listen address (default ":8000")
	DBPath             string   // SQLite file backing the sandbox (default "dbadmin_sandbox.sqlite")
	CORSAllowedOrigins []string // allowed origins (default: ["*"])

	// Credentials accepted by the sandbox. An empty username disables auth.
	Username  string
	Password  string
	JWTSecret string // HS256 key for issued tokens (default: dev secret)

	// Per-client rate limiting. Zero RPS disables the limiter.
	RateLimitRPS   float64
	RateLimitBurst int
}

// AuthEnabled reports whether the sandbox requires credentials.
func (s SandboxConfig) AuthEnabled() bool {
	return s.Username != ""
}

// Config holds the configuration of the API client and its transports.
type Config struct {
	Host        string // application base URL
	Username    string // HTTP basic auth user
	Password    string // HTTP basic auth password
	Token       string // bearer token, alternative to basic auth
	RPCEndpoint string // JSON-RPC path (default "/api/rpc/v0/")
	RESTPrefix  string // REST path prefix (default "/api/db/v0/")

	HTTPTimeout time.Duration // per-attempt timeout (default 30s)
	MaxRetries  int           // retries for transient failures (default 3)

	// Client-side rate limiting. Zero RPS disables the limiter.
	RateLimitRPS   float64
	RateLimitBurst int

	LogLevel string // debug, info, warn, error (default "info")

	// Tracing. An empty endpoint disables export.
	OTLPEndpoint string
	ServiceName  string

	Sandbox SandboxConfig

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// HasBasicAuth returns true when both username and password are set.
func (c *Config) HasBasicAuth() bool {
	return c.Username != "" && c.Password != ""
}

// TracingEnabled returns true when an OTLP endpoint is configured.
func (c *Config) TracingEnabled() bool {
	return c.OTLPEndpoint != ""
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Host:         os.Getenv("DBADMIN_HOST"),
		Username:     os.Getenv("DBADMIN_USERNAME"),
		Password:     os.Getenv("DBADMIN_PASSWORD"),
		Token:        os.Getenv("DBADMIN_TOKEN"),
		RPCEndpoint:  os.Getenv("DBADMIN_RPC_ENDPOINT"),
		RESTPrefix:   os.Getenv("DBADMIN_REST_PREFIX"),
		LogLevel:     os.Getenv("LOG_LEVEL"),
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		ServiceName:  os.Getenv("OTEL_SERVICE_NAME"),
		MaxRetries:   -1,
		Sandbox: SandboxConfig{
			ListenAddr: os.Getenv("SANDBOX_LISTEN_ADDR"),
			DBPath:     os.Getenv("SANDBOX_DB_PATH"),
			Username:   os.Getenv("SANDBOX_USERNAME"),
			Password:   os.Getenv("SANDBOX_PASSWORD"),
			JWTSecret:  os.Getenv("SANDBOX_JWT_SECRET"),
		},
	}

	if v := os.Getenv("HTTP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid HTTP_TIMEOUT %q: %w", v, err)
		}
		cfg.HTTPTimeout = d
	}
	if v := os.Getenv("HTTP_MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid HTTP_MAX_RETRIES %q", v)
		}
		cfg.MaxRetries = n
	}

	// Rate limiting
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		}
	}

	if v := os.Getenv("SANDBOX_RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Sandbox.RateLimitRPS = f
		}
	}
	if v := os.Getenv("SANDBOX_RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sandbox.RateLimitBurst = n
		}
	}

	if v := os.Getenv("SANDBOX_CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.Sandbox.CORSAllowedOrigins = compactNonEmpty(origins)
	}

	// Defaults
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.RPCEndpoint == "" {
		cfg.RPCEndpoint = DefaultRPCEndpoint
	}
	if cfg.RESTPrefix == "" {
		cfg.RESTPrefix = DefaultRESTPrefix
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RateLimitRPS > 0 && cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 1
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "dbadmin-client"
	}
	if cfg.Sandbox.ListenAddr == "" {
		cfg.Sandbox.ListenAddr = ":8000"
	}
	if cfg.Sandbox.DBPath == "" {
		cfg.Sandbox.DBPath = "dbadmin_sandbox.sqlite"
	}
	if len(cfg.Sandbox.CORSAllowedOrigins) == 0 {
		cfg.Sandbox.CORSAllowedOrigins = []string{"*"}
	}
	if cfg.Sandbox.JWTSecret == "" {
		cfg.Sandbox.JWTSecret = "dev-secret-change-in-production"
		if cfg.Sandbox.AuthEnabled() {
			cfg.Warnings = append(cfg.Warnings, "SANDBOX_JWT_SECRET not set; using an insecure development secret")
		}
	}
	if cfg.Sandbox.RateLimitRPS > 0 && cfg.Sandbox.RateLimitBurst <= 0 {
		cfg.Sandbox.RateLimitBurst = 1
	}

	if err := validateHost(cfg.Host); err != nil {
		return nil, err
	}
	if (cfg.Username == "") != (cfg.Password == "") {
		return nil, fmt.Errorf("both DBADMIN_USERNAME and DBADMIN_PASSWORD must be set together")
	}
	if cfg.Token != "" && cfg.HasBasicAuth() {
		cfg.Warnings = append(cfg.Warnings, "both DBADMIN_TOKEN and basic auth credentials are set; the token takes precedence")
	}
	if !cfg.HasBasicAuth() && cfg.Token == "" {
		cfg.Warnings = append(cfg.Warnings, "no credentials configured; requests are sent anonymously")
	}

	return cfg, nil
}

func validateHost(host string) error {
	u, err := url.Parse(host)
	if err != nil {
		return fmt.Errorf("invalid DBADMIN_HOST %q: %w", host, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid DBADMIN_HOST %q: scheme must be http or https", host)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid DBADMIN_HOST %q: missing host", host)
	}
	return nil
}

func compactNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// LoadDotEnv reads .env files and sets any variables not already in the
// environment. Missing files are not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("stat %s: %w", path, err)
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}
