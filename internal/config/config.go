package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"shoreline/internal/auth"
	"shoreline/internal/blobstore"
	"shoreline/internal/cache"
	"shoreline/internal/database"
	"shoreline/internal/messaging"
	"shoreline/internal/tracing"

	"github.com/joho/godotenv"
)

// Config содержит конфигурацию приложения
type Config struct {
	Port           string
	GinMode        string
	LogLevel       string
	LogFormat      string
	RequestTimeout time.Duration
	PublicBaseURL  string

	// Storage selects the document/blob/account backends: postgres or memory
	Storage string

	Database      database.Config
	NATS          messaging.Config
	Cache         cache.Config
	Elasticsearch ElasticsearchConfig
	Auth          auth.Config
	Blob          blobstore.Config
	Tracing       tracing.Config
	RateLimit     RateLimitConfig

	// BootstrapAdmin is created on startup when both fields are set
	BootstrapAdmin AdminConfig
}

type AdminConfig struct {
	Email    string
	Password string
}

// RateLimitConfig applies per client IP on sign-in and admin routes
type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

// Load загружает конфигурацию из переменных окружения. A .env file in the
// working directory is read first when present.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to read .env file", "error", err)
	}

	publicBaseURL := getEnv("PUBLIC_BASE_URL", "http://localhost:8080")

	return &Config{
		Port:           getEnv("PORT", "8080"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		PublicBaseURL:  publicBaseURL,
		Storage:        getEnv("STORAGE_BACKEND", "postgres"),

		Database: database.Config{
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnvInt("DB_PORT", 5432),
			User:               getEnv("DB_USER", "shoreline"),
			Password:           getEnv("DB_PASSWORD", "shoreline"),
			DBName:             getEnv("DB_NAME", "shoreline"),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetimeMin: getEnvInt("DB_CONN_MAX_LIFETIME_MIN", 5),
			ConnMaxIdleTimeMin: getEnvInt("DB_CONN_MAX_IDLE_TIME_MIN", 1),
		},

		NATS: messaging.Config{
			Enabled:   getEnvBool("NATS_ENABLED", true),
			URL:       getEnv("NATS_URL", "nats://localhost:4222"),
			ClusterID: getEnv("NATS_CLUSTER_ID", "shoreline"),
			ClientID:  getEnv("NATS_CLIENT_ID", "shoreline-api"),
		},

		Cache: cache.Config{
			Enabled:  getEnvBool("VALKEY_ENABLED", true),
			Addr:     getEnv("VALKEY_ADDR", "localhost:6379"),
			Password: os.Getenv("VALKEY_PASSWORD"),
			DB:       getEnvInt("VALKEY_DB", 0),
			TTL:      getEnvDuration("ANALYTICS_CACHE_TTL", 10*time.Minute),
		},

		Elasticsearch: LoadElasticsearchConfig(),

		Auth: auth.Config{
			JWTSecret:  getEnv("JWT_SECRET", ""),
			TokenTTL:   getEnvDuration("JWT_TTL", time.Hour),
			Issuer:     getEnv("JWT_ISSUER", "shoreline"),
			BcryptCost: getEnvInt("BCRYPT_COST", 10),
		},

		Blob: blobstore.Config{
			PublicBaseURL:  publicBaseURL,
			MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_MB", 10)) << 20,
		},

		Tracing: tracing.Config{
			Endpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			Insecure:    getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "shoreline"),
			SampleRatio: getEnvFloat("OTEL_SAMPLE_RATIO", 1),
		},

		RateLimit: RateLimitConfig{
			Enabled: getEnvBool("RATE_LIMIT_ENABLED", true),
			RPS:     getEnvFloat("RATE_LIMIT_RPS", 5),
			Burst:   getEnvInt("RATE_LIMIT_BURST", 10),
		},

		BootstrapAdmin: AdminConfig{
			Email:    os.Getenv("ADMIN_EMAIL"),
			Password: os.Getenv("ADMIN_PASSWORD"),
		},
	}
}

// getEnv получает значение переменной окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает целочисленное значение переменной окружения
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("30s") or plain seconds ("30")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
