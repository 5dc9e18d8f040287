package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures runtime configuration for the API service.
type Config struct {
	HTTP         HTTPConfig
	Database     DatabaseConfig
	Kafka        KafkaConfig
	Paystack     PaystackConfig
	SuccessCache SuccessCacheConfig
	Telemetry    TelemetryConfig
	Service      ServiceConfig
}

type HTTPConfig struct {
	Port          int
	MetricsPath   string
	ShutdownGrace int
}

type DatabaseConfig struct {
	// Backend is "postgres" or "memory".
	Backend        string
	URL            string
	AutoMigrate    bool
	MigrationsPath string
	IdempotencyTTL time.Duration
}

type KafkaConfig struct {
	Brokers     []string
	TopicPrefix string
}

type PaystackConfig struct {
	SecretKey      string
	BaseURL        string
	CallbackURL    string
	Timeout        time.Duration
	MaxAttempts    int
	MinAmountMinor int64
	ReturnPath     string
}

type SuccessCacheConfig struct {
	// Backend is "memory" or "redis".
	Backend    string
	RedisURL   string
	TTL        time.Duration
	MaxEntries int
}

type TelemetryConfig struct {
	LogLevel      string
	OTelEndpoint  string
	EnableTracing bool
	EnableMetrics bool
	SampleRate    float64
}

type ServiceConfig struct {
	Name        string
	Version     string
	Environment string
}

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

const (
	defaultHTTPPort         = 8080
	defaultMetricsPath      = "/metrics"
	defaultShutdownGrace    = 15
	defaultMigrationsPath   = "migrations"
	defaultAutoMigrate      = true
	defaultStoreBackend     = BackendPostgres
	defaultIdempotencyHours = 24
	defaultTopicPrefix      = "coursepay."
	defaultPaystackBaseURL  = "https://api.paystack.co"
	defaultCallbackURL      = "http://localhost:8080/v1/payments/verify"
	defaultPaystackTimeout  = 10
	defaultPaystackAttempts = 2
	defaultMinAmountMinor   = 100
	defaultReturnPath       = "/registration"
	defaultCacheBackend     = BackendMemory
	defaultCacheTTLSeconds  = 600
	defaultCacheMaxEntries  = 10000
	defaultServiceName      = "coursepay-api"
	defaultServiceVersion   = "0.1.0"
	defaultEnvironment      = "development"
	defaultLogLevel         = "info"
	defaultOTelSampleRate   = 1.0
)

// Load reads configuration from environment variables, applying defaults when needed.
func Load() (*Config, error) {
	httpCfg, err := loadHTTPConfig()
	if err != nil {
		return nil, fmt.Errorf("loading HTTP config: %w", err)
	}

	dbCfg, err := loadDatabaseConfig()
	if err != nil {
		return nil, fmt.Errorf("loading database config: %w", err)
	}

	paystackCfg, err := loadPaystackConfig()
	if err != nil {
		return nil, fmt.Errorf("loading paystack config: %w", err)
	}

	cacheCfg, err := loadSuccessCacheConfig()
	if err != nil {
		return nil, fmt.Errorf("loading success cache config: %w", err)
	}

	telCfg, err := loadTelemetryConfig()
	if err != nil {
		return nil, fmt.Errorf("loading telemetry config: %w", err)
	}

	return &Config{
		HTTP:         httpCfg,
		Database:     dbCfg,
		Kafka:        loadKafkaConfig(),
		Paystack:     paystackCfg,
		SuccessCache: cacheCfg,
		Telemetry:    telCfg,
		Service:      loadServiceConfig(),
	}, nil
}

func loadHTTPConfig() (HTTPConfig, error) {
	port, err := getIntEnv("API_HTTP_PORT", defaultHTTPPort)
	if err != nil {
		return HTTPConfig{}, err
	}

	shutdownGrace, err := getIntEnv("API_SHUTDOWN_GRACE_SECONDS", defaultShutdownGrace)
	if err != nil {
		return HTTPConfig{}, err
	}

	return HTTPConfig{
		Port:          port,
		MetricsPath:   getEnvOrDefault("API_METRICS_PATH", defaultMetricsPath),
		ShutdownGrace: shutdownGrace,
	}, nil
}

func loadDatabaseConfig() (DatabaseConfig, error) {
	backend := strings.ToLower(getEnvOrDefault("STORE_BACKEND", defaultStoreBackend))
	if backend != BackendPostgres && backend != BackendMemory {
		return DatabaseConfig{}, fmt.Errorf("invalid STORE_BACKEND %q: want %s or %s", backend, BackendPostgres, BackendMemory)
	}

	idempotencyHours, err := getIntEnv("IDEMPOTENCY_TTL_HOURS", defaultIdempotencyHours)
	if err != nil {
		return DatabaseConfig{}, err
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		databaseURL = buildDatabaseURL()
	}

	return DatabaseConfig{
		Backend:        backend,
		URL:            databaseURL,
		AutoMigrate:    getBoolEnv("AUTO_MIGRATE", defaultAutoMigrate),
		MigrationsPath: getEnvOrDefault("MIGRATIONS_PATH", defaultMigrationsPath),
		IdempotencyTTL: time.Duration(idempotencyHours) * time.Hour,
	}, nil
}

func loadKafkaConfig() KafkaConfig {
	var brokers []string
	if value, ok := os.LookupEnv("KAFKA_BROKERS"); ok && value != "" {
		for _, broker := range strings.Split(value, ",") {
			if broker = strings.TrimSpace(broker); broker != "" {
				brokers = append(brokers, broker)
			}
		}
	}

	return KafkaConfig{
		Brokers:     brokers,
		TopicPrefix: getEnvOrDefault("KAFKA_TOPIC_PREFIX", defaultTopicPrefix),
	}
}

func loadPaystackConfig() (PaystackConfig, error) {
	timeout, err := getIntEnv("PAYSTACK_TIMEOUT_SECONDS", defaultPaystackTimeout)
	if err != nil {
		return PaystackConfig{}, err
	}

	attempts, err := getIntEnv("PAYSTACK_MAX_ATTEMPTS", defaultPaystackAttempts)
	if err != nil {
		return PaystackConfig{}, err
	}
	if attempts < 1 {
		return PaystackConfig{}, fmt.Errorf("invalid PAYSTACK_MAX_ATTEMPTS: must be at least 1")
	}

	minAmount, err := getIntEnv("PAYSTACK_MIN_AMOUNT_MINOR", defaultMinAmountMinor)
	if err != nil {
		return PaystackConfig{}, err
	}

	return PaystackConfig{
		SecretKey:      os.Getenv("PAYSTACK_SECRET_KEY"),
		BaseURL:        getEnvOrDefault("PAYSTACK_BASE_URL", defaultPaystackBaseURL),
		CallbackURL:    getEnvOrDefault("PAYSTACK_CALLBACK_URL", defaultCallbackURL),
		Timeout:        time.Duration(timeout) * time.Second,
		MaxAttempts:    attempts,
		MinAmountMinor: int64(minAmount),
		ReturnPath:     getEnvOrDefault("PAYMENT_RETURN_PATH", defaultReturnPath),
	}, nil
}

func loadSuccessCacheConfig() (SuccessCacheConfig, error) {
	backend := strings.ToLower(getEnvOrDefault("SUCCESS_CACHE_BACKEND", defaultCacheBackend))
	if backend != BackendMemory && backend != BackendRedis {
		return SuccessCacheConfig{}, fmt.Errorf("invalid SUCCESS_CACHE_BACKEND %q: want %s or %s", backend, BackendMemory, BackendRedis)
	}

	redisURL := os.Getenv("REDIS_URL")
	if backend == BackendRedis && redisURL == "" {
		return SuccessCacheConfig{}, fmt.Errorf("REDIS_URL is required when SUCCESS_CACHE_BACKEND=%s", BackendRedis)
	}

	ttl, err := getIntEnv("SUCCESS_CACHE_TTL_SECONDS", defaultCacheTTLSeconds)
	if err != nil {
		return SuccessCacheConfig{}, err
	}

	maxEntries, err := getIntEnv("SUCCESS_CACHE_MAX_ENTRIES", defaultCacheMaxEntries)
	if err != nil {
		return SuccessCacheConfig{}, err
	}

	return SuccessCacheConfig{
		Backend:    backend,
		RedisURL:   redisURL,
		TTL:        time.Duration(ttl) * time.Second,
		MaxEntries: maxEntries,
	}, nil
}

func loadTelemetryConfig() (TelemetryConfig, error) {
	sampleRate := defaultOTelSampleRate
	if value, ok := os.LookupEnv("OTEL_SAMPLE_RATE"); ok {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return TelemetryConfig{}, fmt.Errorf("invalid OTEL_SAMPLE_RATE: %w", err)
		}
		sampleRate = parsed
	}

	return TelemetryConfig{
		LogLevel:      getEnvOrDefault("LOG_LEVEL", defaultLogLevel),
		OTelEndpoint:  getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		EnableTracing: getBoolEnv("OTEL_ENABLE_TRACING", true),
		EnableMetrics: getBoolEnv("OTEL_ENABLE_METRICS", true),
		SampleRate:    sampleRate,
	}, nil
}

func loadServiceConfig() ServiceConfig {
	return ServiceConfig{
		Name:        getEnvOrDefault("API_SERVICE_NAME", defaultServiceName),
		Version:     getEnvOrDefault("SERVICE_VERSION", defaultServiceVersion),
		Environment: getEnvOrDefault("ENVIRONMENT", defaultEnvironment),
	}
}

func buildDatabaseURL() string {
	host := getEnvOrDefault("DB_HOST", "localhost")
	port := getEnvOrDefault("DB_PORT", "5432")
	user := getEnvOrDefault("DB_USER", "postgres")
	password := getEnvOrDefault("DB_PASSWORD", "postgres")
	dbName := getEnvOrDefault("DB_NAME", "coursepay")
	sslMode := getEnvOrDefault("DB_SSLMODE", "disable")

	maxConns := getEnvOrDefault("DB_MAX_CONNS", "25")
	minConns := getEnvOrDefault("DB_MIN_CONNS", "5")
	maxLifetime := getEnvOrDefault("DB_MAX_CONN_LIFETIME", "5m")

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s&pool_max_conns=%s&pool_min_conns=%s&pool_max_conn_lifetime=%s",
		user, password, host, port, dbName, sslMode, maxConns, minConns, maxLifetime,
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		return value == "true"
	}
	return defaultValue
}
