package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewAreaRulesHolder),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	APIKey      string

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
	DBSlowQuery       time.Duration
	AutoMigrate       bool

	Telemetry TelemetryConfig
	Timeouts  TimeoutConfig
	Tags      TagConfig
	Catalog   CatalogConfig
	RateLimit RateLimitConfig
	Export    ExportConfig
}

// TimeoutConfig holds the per-operation deadlines applied around store access.
type TimeoutConfig struct {
	Connect time.Duration
	Read    time.Duration
	Write   time.Duration
}

// TelemetryConfig covers logging and OTLP export.
type TelemetryConfig struct {
	LogLevel     string
	LogFormat    string
	OtelEnabled  bool
	OtelEndpoint string
	OtelProtocol string
	OtelSampling float64
}

type TagConfig struct {
	LegacyEPC        bool
	AuditDedupWindow time.Duration
	DefaultActor     string
	DefaultDevice    string
	RequiredAreas    []string
}

type CatalogConfig struct {
	ItemCategory string
	SuggestTTL   time.Duration
}

type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	WriteRate     float64
	WriteBurst    int
}

type ExportConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool

	// ArchiveInterval enables the periodic archive when positive.
	ArchiveInterval time.Duration
	ArchiveLookback time.Duration
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "rfidtrack"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		APIKey:       strings.TrimSpace(getenv("API_KEY", "changeme")),

		DBType:            strings.ToLower(getenv("DATABASE_TYPE", "mysql")),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "3306"),
		DBName:            getenv("DATABASE_NAME", "rfid"),
		DBUser:            getenv("DATABASE_USER", "rfid"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "rfidtrack.db"),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 5)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 10)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 1800)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 300)),
		DBSlowQuery:       getenvDuration("DATABASE_SLOW_QUERY", 200*time.Millisecond),
		AutoMigrate:       getenvBool("DATABASE_AUTO_MIGRATE", true),

		Telemetry: TelemetryConfig{
			LogLevel:     strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL", "info"))),
			LogFormat:    strings.ToLower(strings.TrimSpace(getenv("LOG_FORMAT", "json"))),
			OtelEnabled:  getenvBool("OTEL_ENABLED", false),
			OtelEndpoint: strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")),
			OtelProtocol: otlpProtocol(),
			OtelSampling: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		},
		Timeouts: TimeoutConfig{
			Connect: getenvDuration("CONNECT_TIMEOUT", 3*time.Second),
			Read:    getenvDuration("READ_TIMEOUT", 3*time.Second),
			Write:   getenvDuration("WRITE_TIMEOUT", 4*time.Second),
		},
		Tags: TagConfig{
			LegacyEPC:        getenvBool("TAGS_LEGACY_EPC", false),
			AuditDedupWindow: getenvDuration("AUDIT_DEDUP_WINDOW", 5*time.Second),
			DefaultActor:     getenv("DEFAULT_ACTOR", "system"),
			DefaultDevice:    getenv("DEFAULT_DEVICE_ID", "unknown"),
			RequiredAreas:    parseList(getenv("REQUIRED_LOCATION_AREAS", "WAREHOUSE,KITTING")),
		},
		Catalog: CatalogConfig{
			ItemCategory: strings.ToUpper(strings.TrimSpace(getenv("BOM_ITEM_CATEGORY", "BATT"))),
			SuggestTTL:   getenvDuration("BOM_SUGGEST_TTL", 300*time.Second),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:     strings.TrimSpace(getenv("RATE_LIMIT_REDIS_ADDR", "localhost:6379")),
			RedisPassword: getenv("RATE_LIMIT_REDIS_PASSWORD", ""),
			RedisDB:       int(getenvInt64("RATE_LIMIT_REDIS_DB", 0)),
			WriteRate:     getenvFloat("RATE_LIMIT_WRITE_RATE", 5),
			WriteBurst:    int(getenvInt64("RATE_LIMIT_WRITE_BURST", 10)),
		},
		Export: ExportConfig{
			Bucket:          strings.TrimSpace(getenv("EXPORT_S3_BUCKET", "")),
			Region:          getenv("EXPORT_S3_REGION", "us-east-1"),
			Endpoint:        strings.TrimSpace(getenv("EXPORT_S3_ENDPOINT", "")),
			Prefix:          strings.Trim(getenv("EXPORT_S3_PREFIX", "exports"), "/"),
			AccessKeyID:     strings.TrimSpace(getenv("EXPORT_S3_ACCESS_KEY_ID", "")),
			SecretAccessKey: strings.TrimSpace(getenv("EXPORT_S3_SECRET_ACCESS_KEY", "")),
			UsePathStyle:    getenvBool("EXPORT_S3_PATH_STYLE", false),
			ArchiveInterval: getenvDuration("EXPORT_ARCHIVE_INTERVAL", 0),
			ArchiveLookback: getenvDuration("EXPORT_ARCHIVE_LOOKBACK", 24*time.Hour),
		},
	}

	return cfg
}

// otlpProtocol lets the traces-specific variable override the shared one.
func otlpProtocol() string {
	protocol := getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	if traces := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL")); traces != "" {
		protocol = traces
	}
	return strings.ToLower(strings.TrimSpace(protocol))
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

// getenvDuration accepts Go durations ("4s", "250ms") or a bare number of
// seconds ("4", "0.5").
func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
		return parsed
	}
	if seconds, err := strconv.ParseFloat(value, 64); err == nil && seconds > 0 {
		return time.Duration(seconds * float64(time.Second))
	}
	return def
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
