// Package config provides application configuration from defaults, an
// optional YAML file and environment variables, applied in that order.
//
// # Sources
//
// SPARK_CONFIG_FILE names a YAML file overlaid onto the defaults. Environment
// variables then override both. The SPARK_* names win over the legacy names
// the web client deployment already sets (PORT, NODE_ENV, JWT_SECRET,
// JWT_EXPIRE, JWT_COOKIE_EXPIRE, CLIENT_URL, DATABASE_URL).
//
// Server settings:
//
//	SPARK_PORT="5000"
//	SPARK_HEALTH_PORT="9090"
//	SPARK_CLIENT_URL="http://localhost:3000"  # comma-separated
//	SPARK_MAX_BODY_BYTES="10485760"
//
// Auth settings:
//
//	SPARK_JWT_SECRET="..."              # at least 32 characters outside development
//	SPARK_SESSION_DURATION="30"         # bare integer means days; "12h", "2w" also work
//	SPARK_PASSWORD_COST="10"
//	SPARK_COOKIE_SECURE="true"          # defaults to true outside development
//
// Rate limiting:
//
//	SPARK_RATELIMIT_BACKEND="memory"    # memory or redis
//	SPARK_SEARCH_RATE_MAX="10"
//	SPARK_SEARCH_RATE_WINDOW="60s"
//	SPARK_RATELIMIT_FAIL_OPEN="true"
//
// Storage:
//
//	SPARK_STORAGE_TYPE="postgres"       # memory or postgres
//	SPARK_POSTGRES_URL="postgres://localhost/sports"
//	SPARK_REDIS_URL="redis://localhost:6379/0"
//	SPARK_CACHE_ENABLED="true"
//
// Audit and observability:
//
//	SPARK_AUDIT_SINK="file"             # none, file or database
//	SPARK_LOG_LEVEL="info"
//	SPARK_OTEL_ENABLED="true"
//	SPARK_OTEL_ENDPOINT="otel-collector:4317"
//
// In YAML, session_duration takes either form:
//
//	auth:
//	  session_duration: 30      # days
//	  # session_duration: 12h
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//	ttl := cfg.Auth.SessionDuration.Duration()
package config
