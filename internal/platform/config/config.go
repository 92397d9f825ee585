package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	DatabaseURL    string // empty selects the in-memory stores
	Port           string
	IsProduction   bool
	EnableDBCheck  bool
	RunMigrations  bool
	MigrationsPath string

	// Account ledger access
	LedgerBaseURL         string // empty selects the in-process ledger
	LedgerMaxAttempts     int
	LedgerRetryBaseDelay  time.Duration
	LedgerRetryMaxDelay   time.Duration
	LedgerStepTimeout     time.Duration
	LedgerConflictRetries int

	// Saga recovery sweep
	RecoveryInterval   time.Duration
	RecoveryStaleAfter time.Duration
	RecoveryBatchSize  int

	// Idempotency lock; empty RedisURL keeps the lock in process
	RedisURL           string
	IdempotencyLockTTL time.Duration

	// Compliance events
	AMQPURL        string
	EventsExchange string
	PosthogAPIKey  string

	CustomerServiceURL string

	RateLimit          string
	CORSAllowedOrigins []string
}

// LoadConfig loads configuration from environment variables and .env file if present.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	viper.SetDefault("PGSQL_URL", "")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("IS_PRODUCTION", false)
	viper.SetDefault("ENABLE_DB_CHECK", false)
	viper.SetDefault("RUN_MIGRATIONS", true)
	viper.SetDefault("MIGRATIONS_PATH", "file://migrations")
	viper.SetDefault("LEDGER_BASE_URL", "")
	viper.SetDefault("LEDGER_MAX_ATTEMPTS", 3)
	viper.SetDefault("LEDGER_RETRY_BASE_DELAY", "100ms")
	viper.SetDefault("LEDGER_RETRY_MAX_DELAY", "2s")
	viper.SetDefault("LEDGER_STEP_TIMEOUT", "5s")
	viper.SetDefault("LEDGER_CONFLICT_RETRIES", 3)
	viper.SetDefault("RECOVERY_INTERVAL", "30s")
	viper.SetDefault("RECOVERY_STALE_AFTER", "1m")
	viper.SetDefault("RECOVERY_BATCH_SIZE", 50)
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("IDEMPOTENCY_LOCK_TTL", "30s")
	viper.SetDefault("AMQP_URL", "")
	viper.SetDefault("EVENTS_EXCHANGE", "compliance.events")
	viper.SetDefault("POSTHOG_API_KEY", "")
	viper.SetDefault("CUSTOMER_SERVICE_URL", "")
	viper.SetDefault("RATE_LIMIT", "100-M")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "*")

	viper.AutomaticEnv()

	cfg := &Config{}

	cfg.DatabaseURL = viper.GetString("PGSQL_URL")
	if cfg.DatabaseURL == "" {
		log.Println("Warning: PGSQL_URL environment variable not set. Using in-memory stores.")
	}

	cfg.Port = viper.GetString("PORT")
	if cfg.Port == "" {
		cfg.Port = "8080"
		log.Printf("Warning: PORT environment variable not set. Defaulting to %s\n", cfg.Port)
	}

	cfg.IsProduction = viper.GetBool("IS_PRODUCTION")
	cfg.EnableDBCheck = viper.GetBool("ENABLE_DB_CHECK")
	cfg.RunMigrations = viper.GetBool("RUN_MIGRATIONS")
	cfg.MigrationsPath = viper.GetString("MIGRATIONS_PATH")

	cfg.LedgerBaseURL = strings.TrimRight(viper.GetString("LEDGER_BASE_URL"), "/")
	cfg.LedgerMaxAttempts = positiveInt("LEDGER_MAX_ATTEMPTS", 3)
	cfg.LedgerRetryBaseDelay = duration("LEDGER_RETRY_BASE_DELAY", 100*time.Millisecond)
	cfg.LedgerRetryMaxDelay = duration("LEDGER_RETRY_MAX_DELAY", 2*time.Second)
	cfg.LedgerStepTimeout = duration("LEDGER_STEP_TIMEOUT", 5*time.Second)
	cfg.LedgerConflictRetries = positiveInt("LEDGER_CONFLICT_RETRIES", 3)

	cfg.RecoveryInterval = duration("RECOVERY_INTERVAL", 30*time.Second)
	cfg.RecoveryStaleAfter = duration("RECOVERY_STALE_AFTER", time.Minute)
	cfg.RecoveryBatchSize = positiveInt("RECOVERY_BATCH_SIZE", 50)

	cfg.RedisURL = viper.GetString("REDIS_URL")
	cfg.IdempotencyLockTTL = duration("IDEMPOTENCY_LOCK_TTL", 30*time.Second)

	cfg.AMQPURL = viper.GetString("AMQP_URL")
	cfg.EventsExchange = viper.GetString("EVENTS_EXCHANGE")
	cfg.PosthogAPIKey = viper.GetString("POSTHOG_API_KEY")
	if cfg.AMQPURL == "" && cfg.PosthogAPIKey == "" {
		log.Println("Warning: neither AMQP_URL nor POSTHOG_API_KEY set. Compliance events are only logged.")
	}

	cfg.CustomerServiceURL = strings.TrimRight(viper.GetString("CUSTOMER_SERVICE_URL"), "/")
	cfg.RateLimit = viper.GetString("RATE_LIMIT")

	for _, origin := range strings.Split(viper.GetString("CORS_ALLOWED_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, origin)
		}
	}

	return cfg, nil
}

// duration reads a duration key, falling back to def on a missing or malformed value.
func duration(key string, def time.Duration) time.Duration {
	raw := viper.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		if raw != "" {
			log.Printf("Warning: Invalid value for %s ('%s'). Defaulting to %s.\n", key, raw, def.String())
		}
		return def
	}
	return d
}

func positiveInt(key string, def int) int {
	v := viper.GetInt(key)
	if v <= 0 {
		log.Printf("Warning: Invalid value for %s. Defaulting to %d.\n", key, def)
		return def
	}
	return v
}
