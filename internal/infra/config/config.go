package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StorageMemory = "memory"
	StorageMongo  = "mongo"

	LockLocal = "local"
	LockRedis = "redis"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env                string
	HTTPAddr           string
	MetricsAddr        string
	StorageMode        string
	MongoURI           string
	MongoDB            string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	LockMode           string
	LockTTL            time.Duration
	KafkaBrokers       []string
	KafkaTopicPrefix   string
	IdempotencyTTL     time.Duration
	OutboxPollInterval time.Duration
	RetryBackoff       []time.Duration
	Currency           string
	CleaningFeeMinor   int64
	ServiceFeeMinor    int64
	DebounceWindow     time.Duration
	BookingTimeout     time.Duration
	RollbackAttempts   int
	PendingBookingTTL  time.Duration
	ReconcileGrace     time.Duration
	ExpirySchedule     string
	ReconcileSchedule  string
	WriteRateLimit     float64
	WriteRateBurst     int
	FixturesEnabled    bool
}

// Load parses configuration from the current environment.
func Load() (Config, error) {
	cfg := Config{
		Env:               getEnv("APP_ENV", "dev"),
		HTTPAddr:          getEnv("HTTP_ADDR", ":8080"),
		MetricsAddr:       getEnv("METRICS_ADDR", ""),
		StorageMode:       strings.ToLower(getEnv("STORAGE_MODE", StorageMemory)),
		MongoURI:          os.Getenv("MONGO_URI"),
		MongoDB:           getEnv("MONGO_DB", "travelbook"),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		LockMode:          strings.ToLower(getEnv("LOCK_MODE", LockLocal)),
		KafkaTopicPrefix:  getEnv("KAFKA_TOPIC_PREFIX", ""),
		Currency:          strings.ToUpper(getEnv("CURRENCY", "USD")),
		ExpirySchedule:    getEnv("EXPIRY_SCHEDULE", "@every 1m"),
		ReconcileSchedule: getEnv("RECONCILE_SCHEDULE", "@every 10m"),
	}
	brokers := getEnv("KAFKA_BROKERS", "")
	if brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	var err error
	if cfg.RedisDB, err = parseIntEnv("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if cfg.LockTTL, err = parseDurationEnv("LOCK_TTL", 15*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = parseDurationEnv("IDEMP_TTL", 168*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.OutboxPollInterval, err = parseDurationEnv("OUTBOX_POLL_INTERVAL", 500*time.Millisecond); err != nil {
		return Config{}, err
	}
	if cfg.DebounceWindow, err = parseDurationEnv("DEBOUNCE_WINDOW", 300*time.Millisecond); err != nil {
		return Config{}, err
	}
	if cfg.BookingTimeout, err = parseDurationEnv("BOOKING_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.PendingBookingTTL, err = parseDurationEnv("PENDING_BOOKING_TTL", 30*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.ReconcileGrace, err = parseDurationEnv("RECONCILE_GRACE", 5*time.Minute); err != nil {
		return Config{}, err
	}
	attempts, err := parseIntEnv("ROLLBACK_ATTEMPTS", 3)
	if err != nil {
		return Config{}, err
	}
	cfg.RollbackAttempts = attempts
	cleaning, err := parseIntEnv("CLEANING_FEE_MINOR", 0)
	if err != nil {
		return Config{}, err
	}
	cfg.CleaningFeeMinor = int64(cleaning)
	service, err := parseIntEnv("SERVICE_FEE_MINOR", 0)
	if err != nil {
		return Config{}, err
	}
	cfg.ServiceFeeMinor = int64(service)
	if cfg.WriteRateLimit, err = parseFloatEnv("WRITE_RATE_LIMIT", 5); err != nil {
		return Config{}, err
	}
	if cfg.WriteRateBurst, err = parseIntEnv("WRITE_RATE_BURST", 10); err != nil {
		return Config{}, err
	}
	if cfg.FixturesEnabled, err = parseBoolEnv("LOAD_FIXTURES", cfg.StorageMode == StorageMemory); err != nil {
		return Config{}, err
	}

	retryStr := getEnv("RETRY_BACKOFF", "1s,5s,30s")
	for _, raw := range strings.Split(retryStr, ",") {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RETRY_BACKOFF component %q: %w", raw, err)
		}
		cfg.RetryBackoff = append(cfg.RetryBackoff, d)
	}

	switch cfg.StorageMode {
	case StorageMemory:
	case StorageMongo:
		if cfg.MongoURI == "" {
			return Config{}, fmt.Errorf("MONGO_URI is required when STORAGE_MODE=mongo")
		}
	default:
		return Config{}, fmt.Errorf("invalid STORAGE_MODE %q", cfg.StorageMode)
	}
	switch cfg.LockMode {
	case LockLocal, LockRedis:
	default:
		return Config{}, fmt.Errorf("invalid LOCK_MODE %q", cfg.LockMode)
	}
	if len(cfg.Currency) != 3 {
		return Config{}, fmt.Errorf("invalid CURRENCY %q", cfg.Currency)
	}
	if cfg.CleaningFeeMinor < 0 || cfg.ServiceFeeMinor < 0 {
		return Config{}, fmt.Errorf("fees cannot be negative")
	}
	if cfg.RollbackAttempts < 1 {
		return Config{}, fmt.Errorf("ROLLBACK_ATTEMPTS must be at least 1")
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseIntEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s integer: %w", key, err)
	}
	return n, nil
}

func parseFloatEnv(key string, def float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s number: %w", key, err)
	}
	return f, nil
}

func parseBoolEnv(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "yes", "y", "on":
		return true, nil
	case "0", "f", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid %s boolean: %q", key, raw)
	}
}
