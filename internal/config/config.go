package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	Observability ObservabilityConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	ERP  ERPConfig
	Sync SyncConfig

	// ReportDays bounds the by-date window and the bill fetch range.
	ReportDays int
	// ReferenceDate overrides "today" for every report when set.
	ReferenceDate *time.Time
	Timezone      string
}

// ObservabilityConfig configures logs, traces and OTLP metrics.
type ObservabilityConfig struct {
	LogLevel      string
	LogFormat     string
	OtelEnabled   bool
	OTLPEndpoint  string
	OTLPProtocol  string
	SamplingRatio float64
}

// ERPConfig configures the upstream ERP web service.
type ERPConfig struct {
	BaseURL         string
	UserID          string
	Token           string
	PageSize        int
	Timeout         time.Duration
	MinRequestDelay time.Duration
	ExcludedBranch  string
}

// SyncConfig configures the periodic snapshot refresh.
type SyncConfig struct {
	Enabled          bool
	Interval         time.Duration
	CustomerSyncHour int
	LockTTL          time.Duration
	RunTimeout       time.Duration
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:           getenv("APP_SERVICE", "delinquency"),
		AppVersion:        getenv("SERVICE_VERSION", getenv("APP_VERSION", "0.1.0")),
		Environment:       getenv("DEPLOYMENT_ENV", getenv("ENVIRONMENT", "development")),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		Observability: ObservabilityConfig{
			LogLevel:      strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL", "info"))),
			LogFormat:     strings.ToLower(strings.TrimSpace(getenv("LOG_FORMAT", "json"))),
			OtelEnabled:   getenvBool("OTEL_ENABLED", false),
			OTLPEndpoint:  strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_ENDPOINT", getenv("OTLP_ENDPOINT", "localhost:4317"))),
			OTLPProtocol:  strings.ToLower(strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")))),
			SamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		},
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "delinquency"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "delinquency.db"),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 5)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 20)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 300)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 60)),
		RedisAddr:         strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword:     getenv("REDIS_PASSWORD", ""),
		RedisDB:           int(getenvInt64("REDIS_DB", 0)),
		ERP: ERPConfig{
			BaseURL:         strings.TrimRight(strings.TrimSpace(getenv("ERP_BASE_URL", "")), "/"),
			UserID:          strings.TrimSpace(getenv("ERP_USER_ID", "")),
			Token:           strings.TrimSpace(getenv("ERP_TOKEN", "")),
			PageSize:        int(getenvInt64("ERP_PAGE_SIZE", 100)),
			Timeout:         time.Duration(getenvInt64("ERP_HTTP_TIMEOUT", 120)) * time.Second,
			MinRequestDelay: time.Duration(getenvInt64("ERP_MIN_REQUEST_DELAY_MS", 100)) * time.Millisecond,
			ExcludedBranch:  getenv("ERP_EXCLUDED_BRANCH", "3"),
		},
		Sync: SyncConfig{
			Enabled:          getenvBool("SYNC_ENABLED", true),
			Interval:         time.Duration(getenvInt64("SYNC_INTERVAL_MINUTES", 30)) * time.Minute,
			CustomerSyncHour: int(getenvInt64("SYNC_CUSTOMERS_HOUR", 3)),
			LockTTL:          time.Duration(getenvInt64("SYNC_LOCK_TTL_SECONDS", 900)) * time.Second,
			RunTimeout:       time.Duration(getenvInt64("SYNC_RUN_TIMEOUT_SECONDS", 600)) * time.Second,
		},
		ReportDays:    int(getenvInt64("REPORT_DAYS", 45)),
		ReferenceDate: getenvDate("REFERENCE_DATE"),
		Timezone:      getenv("TIMEZONE", "UTC"),
	}

	if cfg.Sync.CustomerSyncHour < 0 || cfg.Sync.CustomerSyncHour > 23 {
		log.Printf("SYNC_CUSTOMERS_HOUR=%d out of range, using 3", cfg.Sync.CustomerSyncHour)
		cfg.Sync.CustomerSyncHour = 3
	}

	return cfg
}

// Location resolves the configured timezone, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(strings.TrimSpace(c.Timezone))
	if err != nil || loc == nil {
		return time.UTC
	}
	return loc
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDate(key string) *time.Time {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil
	}
	parsed, err := time.Parse(time.DateOnly, value)
	if err != nil {
		log.Printf("invalid %s=%q, expected YYYY-MM-DD", key, value)
		return nil
	}
	return &parsed
}
