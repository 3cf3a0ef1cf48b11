package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreMemory   = "memory"
)

// Config holds application configuration
type Config struct {
	// Server
	Port string
	Env  string

	// Row store
	StoreBackend string
	SQLitePath   string
	StoreTimeout time.Duration
	SeedDemoData bool

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Auth
	JWTSecret      string
	OperatorAPIKey string

	// Ledger
	LoanAnnualRate        decimal.Decimal
	LoanMaxTermMonths     int
	ReportCurrency        string
	AmountScale           int32
	RateSymmetry          string
	RateSymmetryTolerance decimal.Decimal
	ReconcileInterval     time.Duration

	// Events
	KafkaBrokers     []string
	KafkaTopicPrefix string

	// Idempotency
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	IdempotencyTTL time.Duration
}

var appConfig *Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if not already loaded
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	config := &Config{
		// Server
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		// Row store
		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", StoreMemory)),
		SQLitePath:   getEnv("SQLITE_PATH", "jadbank.db"),

		// Database
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "jadbank"),
		DBPassword: getEnv("DB_PASSWORD", "jadbank"),
		DBName:     getEnv("DB_NAME", "jadbank"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		// Auth
		JWTSecret:      getEnv("JWT_SECRET", "fallback-secret-key-for-dev-only"),
		OperatorAPIKey: getEnv("OPERATOR_API_KEY", ""),

		// Ledger
		ReportCurrency: strings.ToUpper(getEnv("REPORT_CURRENCY", "JDC")),
		RateSymmetry:   strings.ToLower(getEnv("RATE_SYMMETRY", "warn")),

		// Events
		KafkaBrokers:     splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopicPrefix: getEnv("KAFKA_TOPIC_PREFIX", "ledger"),

		// Idempotency
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
	}

	config.StoreTimeout = getDuration("STORE_TIMEOUT", 5*time.Second)
	config.ReconcileInterval = getDuration("RECONCILE_INTERVAL", 30*time.Second)
	config.IdempotencyTTL = getDuration("IDEMPOTENCY_TTL", 24*time.Hour)
	config.LoanAnnualRate = getDecimal("LOAN_ANNUAL_RATE", decimal.RequireFromString("12.5"))
	config.RateSymmetryTolerance = getDecimal("RATE_SYMMETRY_TOLERANCE", decimal.RequireFromString("0.01"))
	config.LoanMaxTermMonths = getInt("LOAN_MAX_TERM_MONTHS", 360)
	config.AmountScale = int32(getInt("AMOUNT_SCALE", 8))
	config.RedisDB = getInt("REDIS_DB", 0)
	config.SeedDemoData = getEnv("SEED_DEMO_DATA", "false") == "true" || config.StoreBackend == StoreMemory

	appConfig = config
	return config, nil
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// Set replaces the global configuration. Used by tests and tools that
// build a Config by hand.
func Set(c *Config) {
	appConfig = c
}

// Defaults returns a Config populated with the built-in defaults and no
// environment lookups.
func Defaults() *Config {
	return &Config{
		Port:                  "8080",
		Env:                   "development",
		StoreBackend:          StoreMemory,
		StoreTimeout:          5 * time.Second,
		JWTSecret:             "fallback-secret-key-for-dev-only",
		LoanAnnualRate:        decimal.RequireFromString("12.5"),
		LoanMaxTermMonths:     360,
		ReportCurrency:        "JDC",
		AmountScale:           8,
		RateSymmetry:          "warn",
		RateSymmetryTolerance: decimal.RequireFromString("0.01"),
		ReconcileInterval:     30 * time.Second,
		KafkaTopicPrefix:      "ledger",
		IdempotencyTTL:        24 * time.Hour,
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("Warning: invalid %s value '%s', falling back to %s\n", key, raw, fallback)
		return fallback
	}
	return d
}

func getDecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		log.Printf("Warning: invalid %s value '%s', falling back to %s\n", key, raw, fallback)
		return fallback
	}
	return d
}

func getInt(key string, fallback int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("Warning: invalid %s value '%s', falling back to %d\n", key, raw, fallback)
		return fallback
	}
	return n
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
