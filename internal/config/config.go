package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
)

// Module provides the process configuration loaded from the environment.
var Module = fx.Module("config",
	fx.Provide(Load),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	LogLevel  string
	LogFormat string

	Otel OtelConfig

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

	SnowflakeNode int64
	CatalogFile   string

	Tron       TronConfig
	Rewards    RewardConfig
	Redis      RedisConfig
	Reconciler ReconcilerConfig
}

// TronConfig describes where payments are received and how the transfer feed is read.
type TronConfig struct {
	ReceiveAddress string
	TokenContract  string
	BaseURL        string
	APIKey         string
	FeedLimit      int
	Timeout        time.Duration
	TimeSlop       time.Duration
	MaxOverpay     decimal.Decimal
}

// RewardConfig holds the tap reward constants and the welcome allotment.
type RewardConfig struct {
	BaseTapReward decimal.Decimal
	WelcomeTaps   int64
	WelcomeReward decimal.Decimal
	WelcomeCap    decimal.Decimal
}

// OtelConfig switches OTLP export of traces and metrics.
type OtelConfig struct {
	Enabled       bool
	Endpoint      string
	Protocol      string
	SamplingRatio float64
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TapRate  float64
	TapBurst int
}

type ReconcilerConfig struct {
	Enabled     bool
	RunInterval time.Duration
	BatchSize   int
	MaxAge      time.Duration
	JobTimeout  time.Duration
}

const defaultTRC20USDTContract = "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "tapcoin"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		LogLevel:  strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL", "info"))),
		LogFormat: strings.ToLower(strings.TrimSpace(getenv("LOG_FORMAT", "json"))),

		Otel: OtelConfig{
			Enabled:       getenvBool("OTEL_ENABLED", false),
			Endpoint:      strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")),
			Protocol:      strings.ToLower(strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"))),
			SamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		},

		DBType:            strings.ToLower(getenv("DATABASE_TYPE", "postgres")),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "tapcoin"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "tapcoin.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		SnowflakeNode: getenvInt64("SNOWFLAKE_NODE", 1),
		CatalogFile:   strings.TrimSpace(getenv("CATALOG_FILE", "")),

		Tron: TronConfig{
			ReceiveAddress: strings.TrimSpace(getenv("TRON_RECEIVE_ADDRESS", "")),
			TokenContract:  strings.TrimSpace(getenv("TRC20_USDT_CONTRACT", defaultTRC20USDTContract)),
			BaseURL:        strings.TrimRight(getenv("TRONGRID_BASE_URL", "https://api.trongrid.io"), "/"),
			APIKey:         strings.TrimSpace(getenv("TRONGRID_API_KEY", "")),
			FeedLimit:      getenvInt("TRONGRID_FEED_LIMIT", 20),
			Timeout:        getenvDuration("TRONGRID_TIMEOUT", 15*time.Second),
			TimeSlop:       time.Duration(getenvInt64("PAYMENT_TIME_SLOP_SEC", 300)) * time.Second,
			MaxOverpay:     getenvDecimal("MAX_OVERPAY", decimal.NewFromInt(1000)),
		},
		Rewards: RewardConfig{
			BaseTapReward: getenvDecimal("BASE_TAP_REWARD", decimal.RequireFromString("0.0001")),
			WelcomeTaps:   getenvInt64("WELCOME_TAPS", 10000),
			WelcomeReward: getenvDecimal("WELCOME_REWARD", decimal.RequireFromString("0.0001")),
			WelcomeCap:    getenvDecimal("WELCOME_CAP", decimal.NewFromInt(1)),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
			TapRate:  getenvFloat("TAP_RATE_PER_SEC", 20),
			TapBurst: getenvInt("TAP_BURST", 40),
		},
		Reconciler: ReconcilerConfig{
			Enabled:     getenvBool("RECONCILER_ENABLED", false),
			RunInterval: getenvDuration("RECONCILER_INTERVAL", 30*time.Second),
			BatchSize:   getenvInt("RECONCILER_BATCH_SIZE", 25),
			MaxAge:      getenvDuration("RECONCILER_MAX_AGE", 2*time.Hour),
			JobTimeout:  getenvDuration("RECONCILER_JOB_TIMEOUT", time.Minute),
		},
	}
}

// IsSQLite reports whether the configured store is the embedded SQLite database.
func (c Config) IsSQLite() bool {
	return c.DBType == "sqlite"
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

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
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

func getenvDecimal(key string, def decimal.Decimal) decimal.Decimal {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return def
	}
	return parsed
}

// getenvDuration accepts Go durations ("30s") and bare integers as seconds.
func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}
