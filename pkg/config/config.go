package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/manitejabayya/Sports-Ecosystem/pkg/audit"
	"github.com/manitejabayya/Sports-Ecosystem/pkg/auth"
	"github.com/manitejabayya/Sports-Ecosystem/pkg/observability"
	"github.com/manitejabayya/Sports-Ecosystem/pkg/storage"
)

// Environments
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Rate limiter backends
const (
	LimiterMemory = "memory"
	LimiterRedis  = "redis"
)

// Audit sinks
const (
	AuditNone     = "none"
	AuditFile     = "file"
	AuditDatabase = "database"
)

// Config holds all application configuration
type Config struct {
	Environment string `yaml:"environment"`

	// Server configuration
	Server ServerConfig `yaml:"server"`

	// Auth configuration
	Auth AuthConfig `yaml:"auth"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Storage configuration
	Storage storage.Config `yaml:"storage"`

	// Audit configuration
	Audit AuditConfig `yaml:"audit"`

	// Observability configuration
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// AllowedOrigins are the browser origins allowed to send credentials
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxBodyBytes   int64    `yaml:"max_body_bytes"`

	// TrustedProxies are addresses or CIDR ranges whose forwarding headers
	// name the client. Empty means the peer address is the client.
	TrustedProxies []string `yaml:"trusted_proxies"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`
}

// AuthConfig holds password and session settings
type AuthConfig struct {
	JWTSecret       string          `yaml:"jwt_secret"`
	SessionDuration SessionDuration `yaml:"session_duration"`
	PasswordCost    int             `yaml:"password_cost"`
	HashConcurrency int             `yaml:"hash_concurrency"`

	// CookieSecure overrides the environment-derived Secure cookie flag
	CookieSecure *bool `yaml:"cookie_secure"`
}

// SessionDuration is a session lifetime. In YAML it is either an integer
// number of days or a string such as "12h" or "30d".
type SessionDuration time.Duration

// Duration returns the lifetime as a time.Duration
func (d SessionDuration) Duration() time.Duration {
	return time.Duration(d)
}

// UnmarshalYAML accepts an integer or a string node
func (d *SessionDuration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("session_duration must be a scalar, line %d", value.Line)
	}
	parsed, err := auth.ParseSessionDuration(value.Value)
	if err != nil {
		return fmt.Errorf("session_duration line %d: %w", value.Line, err)
	}
	*d = SessionDuration(parsed)
	return nil
}

// RateLimitConfig holds per-identity and per-address limits
type RateLimitConfig struct {
	Backend  string `yaml:"backend"`
	FailOpen bool   `yaml:"fail_open"`

	SearchMax    int           `yaml:"search_max"`
	SearchWindow time.Duration `yaml:"search_window"`

	// API-wide limit per client address; APIMax 0 disables it
	APIMax    int           `yaml:"api_max"`
	APIWindow time.Duration `yaml:"api_window"`

	// CleanupSchedule is the cron expression for pruning idle in-memory windows
	CleanupSchedule string `yaml:"cleanup_schedule"`
}

// AuditConfig selects where audit events go
type AuditConfig struct {
	Sink        string `yaml:"sink"`
	FilePath    string `yaml:"file_path"`
	LogRequests bool   `yaml:"log_requests"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel     observability.LogLevel `yaml:"-"`
	LogLevelName string                 `yaml:"log_level"`

	// Metrics
	MetricsEnabled bool `yaml:"metrics_enabled"`

	// OpenTelemetry
	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"` // Use insecure gRPC connection
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// Default returns the configuration used before any file or environment
// overrides
func Default() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "5000",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			AllowedOrigins:  []string{"http://localhost:3000"},
			MaxBodyBytes:    10 << 20,
			HealthPort:      "9090",
		},
		Auth: AuthConfig{
			SessionDuration: SessionDuration(30 * auth.Day),
			PasswordCost:    auth.DefaultPasswordCost,
		},
		RateLimit: RateLimitConfig{
			Backend:         LimiterMemory,
			FailOpen:        true,
			SearchMax:       10,
			SearchWindow:    time.Minute,
			APIMax:          100,
			APIWindow:       15 * time.Minute,
			CleanupSchedule: "@every 1m",
		},
		Storage: storage.DefaultConfig(),
		Audit: AuditConfig{
			Sink:     AuditNone,
			FilePath: "/var/log/sports-ecosystem/audit",
		},
		Observability: ObservabilityConfig{
			LogLevel:           observability.InfoLevel,
			LogLevelName:       "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "sports-ecosystem",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
			OTelSampleRatio:    1,
		},
	}
}

// LoadConfig builds configuration from defaults, the YAML file named by
// SPARK_CONFIG_FILE when set, and then environment variables
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("SPARK_CONFIG_FILE"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadFile overlays a YAML file onto cfg. Keys absent from the file keep
// their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.Observability.LogLevel = observability.ParseLogLevel(c.Observability.LogLevelName)
	return nil
}

func (c *Config) applyEnv() error {
	c.Environment = getEnv("SPARK_ENV", getEnv("NODE_ENV", c.Environment))

	loadServerConfig(&c.Server)
	if err := loadAuthConfig(&c.Auth); err != nil {
		return err
	}
	loadRateLimitConfig(&c.RateLimit)
	loadStorageConfig(&c.Storage)
	loadAuditConfig(&c.Audit)
	loadObservabilityConfig(&c.Observability)
	return nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig(cfg *ServerConfig) {
	cfg.Host = getEnv("SPARK_HOST", cfg.Host)
	cfg.Port = getEnv("SPARK_PORT", getEnv("PORT", cfg.Port))
	cfg.ReadTimeout = getEnvDuration("SPARK_READ_TIMEOUT", cfg.ReadTimeout)
	cfg.WriteTimeout = getEnvDuration("SPARK_WRITE_TIMEOUT", cfg.WriteTimeout)
	cfg.IdleTimeout = getEnvDuration("SPARK_IDLE_TIMEOUT", cfg.IdleTimeout)
	cfg.ShutdownTimeout = getEnvDuration("SPARK_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	cfg.HealthPort = getEnv("SPARK_HEALTH_PORT", cfg.HealthPort)
	cfg.MaxBodyBytes = getEnvInt64("SPARK_MAX_BODY_BYTES", cfg.MaxBodyBytes)

	if origins := getEnv("SPARK_CLIENT_URL", os.Getenv("CLIENT_URL")); origins != "" {
		cfg.AllowedOrigins = splitList(origins)
	}
	if proxies := os.Getenv("SPARK_TRUSTED_PROXIES"); proxies != "" {
		cfg.TrustedProxies = splitList(proxies)
	}
}

// loadAuthConfig loads auth configuration from environment
func loadAuthConfig(cfg *AuthConfig) error {
	cfg.JWTSecret = getEnv("SPARK_JWT_SECRET", getEnv("JWT_SECRET", cfg.JWTSecret))

	for _, key := range []string{"SPARK_SESSION_DURATION", "JWT_EXPIRE", "JWT_COOKIE_EXPIRE"} {
		raw := os.Getenv(key)
		if raw == "" {
			continue
		}
		d, err := auth.ParseSessionDuration(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		cfg.SessionDuration = SessionDuration(d)
		break
	}

	cfg.PasswordCost = getEnvInt("SPARK_PASSWORD_COST", cfg.PasswordCost)
	cfg.HashConcurrency = getEnvInt("SPARK_HASH_CONCURRENCY", cfg.HashConcurrency)

	if raw := os.Getenv("SPARK_COOKIE_SECURE"); raw != "" {
		secure := getEnvBool("SPARK_COOKIE_SECURE", false)
		cfg.CookieSecure = &secure
	}
	return nil
}

// loadRateLimitConfig loads rate limit configuration from environment
func loadRateLimitConfig(cfg *RateLimitConfig) {
	cfg.Backend = getEnv("SPARK_RATELIMIT_BACKEND", cfg.Backend)
	cfg.FailOpen = getEnvBool("SPARK_RATELIMIT_FAIL_OPEN", cfg.FailOpen)
	cfg.SearchMax = getEnvInt("SPARK_SEARCH_RATE_MAX", cfg.SearchMax)
	cfg.SearchWindow = getEnvDuration("SPARK_SEARCH_RATE_WINDOW", cfg.SearchWindow)
	cfg.APIMax = getEnvInt("SPARK_API_RATE_MAX", cfg.APIMax)
	cfg.APIWindow = getEnvDuration("SPARK_API_RATE_WINDOW", cfg.APIWindow)
	cfg.CleanupSchedule = getEnv("SPARK_RATELIMIT_CLEANUP_SCHEDULE", cfg.CleanupSchedule)
}

// loadStorageConfig loads storage configuration from environment
func loadStorageConfig(cfg *storage.Config) {
	cfg.Type = getEnv("SPARK_STORAGE_TYPE", cfg.Type)

	// PostgreSQL config
	cfg.PostgresURL = getEnv("SPARK_POSTGRES_URL", getEnv("DATABASE_URL", cfg.PostgresURL))
	if replicaURLs := getEnv("SPARK_POSTGRES_REPLICA_URLS", ""); replicaURLs != "" {
		cfg.PostgresReplicaURLs = splitList(replicaURLs)
	}
	if maxConns := getEnvInt("SPARK_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.PostgresMaxConns = maxConns
	}
	if minConns := getEnvInt("SPARK_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.PostgresMinConns = minConns
	}
	if timeout := getEnvDuration("SPARK_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.PostgresTimeout = timeout
	}
	cfg.AutoMigrate = getEnvBool("SPARK_AUTO_MIGRATE", cfg.AutoMigrate)

	// Redis config
	cfg.RedisURL = getEnv("SPARK_REDIS_URL", cfg.RedisURL)
	cfg.RedisPassword = getEnv("SPARK_REDIS_PASSWORD", cfg.RedisPassword)
	if redisDB := getEnvInt("SPARK_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}
	if redisMaxRetries := getEnvInt("SPARK_REDIS_MAX_RETRIES", 0); redisMaxRetries > 0 {
		cfg.RedisMaxRetries = redisMaxRetries
	}
	if redisPoolSize := getEnvInt("SPARK_REDIS_POOL_SIZE", 0); redisPoolSize > 0 {
		cfg.RedisPoolSize = redisPoolSize
	}

	// Identity cache config
	cfg.CacheEnabled = getEnvBool("SPARK_CACHE_ENABLED", cfg.CacheEnabled)
	cfg.CacheTTL = getEnvDuration("SPARK_CACHE_TTL", cfg.CacheTTL)
	cfg.CacheSize = getEnvInt("SPARK_CACHE_SIZE", cfg.CacheSize)
}

// loadAuditConfig loads audit configuration from environment
func loadAuditConfig(cfg *AuditConfig) {
	cfg.Sink = getEnv("SPARK_AUDIT_SINK", cfg.Sink)
	cfg.FilePath = getEnv("SPARK_AUDIT_FILE_PATH", cfg.FilePath)
	cfg.LogRequests = getEnvBool("SPARK_AUDIT_LOG_REQUESTS", cfg.LogRequests)
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig(cfg *ObservabilityConfig) {
	cfg.LogLevelName = getEnv("SPARK_LOG_LEVEL", cfg.LogLevelName)
	cfg.LogLevel = observability.ParseLogLevel(cfg.LogLevelName)
	cfg.MetricsEnabled = getEnvBool("SPARK_METRICS_ENABLED", cfg.MetricsEnabled)
	cfg.OTelEnabled = getEnvBool("SPARK_OTEL_ENABLED", cfg.OTelEnabled)
	cfg.OTelEndpoint = getEnv("SPARK_OTEL_ENDPOINT", cfg.OTelEndpoint)
	cfg.OTelServiceName = getEnv("SPARK_OTEL_SERVICE_NAME", cfg.OTelServiceName)
	cfg.OTelServiceVersion = getEnv("SPARK_OTEL_SERVICE_VERSION", cfg.OTelServiceVersion)
	cfg.OTelInsecure = getEnvBool("SPARK_OTEL_INSECURE", cfg.OTelInsecure)
	cfg.OTelSampleRatio = getEnvFloat("SPARK_OTEL_SAMPLE_RATIO", cfg.OTelSampleRatio)
}

// IsDevelopment reports whether the service runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// SecureCookies reports whether the session cookie carries the Secure flag
func (c *Config) SecureCookies() bool {
	if c.Auth.CookieSecure != nil {
		return *c.Auth.CookieSecure
	}
	return !c.IsDevelopment()
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	// Validate server config
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server port is required"))
	}
	if c.Server.HealthPort == "" {
		errs = append(errs, errors.New("health port is required"))
	}
	if c.Server.Port != "" && c.Server.Port == c.Server.HealthPort {
		errs = append(errs, errors.New("server port and health port must be different"))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("max body bytes must be positive"))
	}
	if _, err := audit.ParseTrustedProxies(c.Server.TrustedProxies); err != nil {
		errs = append(errs, err)
	}

	// Validate auth config
	switch {
	case c.Auth.JWTSecret == "":
		errs = append(errs, errors.New("JWT secret is required"))
	case !c.IsDevelopment() && len(c.Auth.JWTSecret) < auth.MinSecretLength:
		errs = append(errs, fmt.Errorf("JWT secret must be at least %d characters outside development", auth.MinSecretLength))
	}
	if c.Auth.SessionDuration <= 0 {
		errs = append(errs, errors.New("session duration must be positive"))
	}
	if c.Auth.HashConcurrency < 0 {
		errs = append(errs, errors.New("hash concurrency must not be negative"))
	}

	// Validate rate limit config
	switch c.RateLimit.Backend {
	case LimiterMemory:
	case LimiterRedis:
		if c.Storage.RedisURL == "" {
			errs = append(errs, errors.New("redis URL is required for the redis rate limiter"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid rate limit backend: %s (must be memory or redis)", c.RateLimit.Backend))
	}
	if c.RateLimit.SearchMax <= 0 || c.RateLimit.SearchWindow <= 0 {
		errs = append(errs, errors.New("search rate limit max and window must be positive"))
	}
	if c.RateLimit.APIMax < 0 || (c.RateLimit.APIMax > 0 && c.RateLimit.APIWindow <= 0) {
		errs = append(errs, errors.New("API rate limit window must be positive when the limit is enabled"))
	}

	// Validate storage config
	if err := c.Storage.Validate(); err != nil {
		errs = append(errs, err)
	}

	// Validate audit config
	switch c.Audit.Sink {
	case AuditNone:
	case AuditFile:
		if c.Audit.FilePath == "" {
			errs = append(errs, errors.New("audit file path is required for the file sink"))
		}
	case AuditDatabase:
		if c.Storage.Type != storage.TypePostgres {
			errs = append(errs, errors.New("the database audit sink requires postgres storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid audit sink: %s (must be none, file, or database)", c.Audit.Sink))
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			errs = append(errs, errors.New("OpenTelemetry endpoint is required when OTel is enabled"))
		}
		if c.Observability.OTelServiceName == "" {
			errs = append(errs, errors.New("OpenTelemetry service name is required when OTel is enabled"))
		}
	}

	return errors.Join(errs...)
}

// splitList splits a comma-separated value, dropping blanks
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
