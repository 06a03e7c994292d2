package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type AppConfig struct {
	HTTPAddr     string
	RedisAddr    string
	RedisPass    string
	KafkaBrokers []string
	KafkaTopic   string

	MigrationsDir string

	// Fees
	WithdrawalFeePercent decimal.Decimal

	// Commission rates per sponsor level, level 1 first.
	CommissionRates []decimal.Decimal

	// Outbox dispatcher
	OutboxBatchSize    int
	OutboxPollInterval time.Duration
	OutboxMaxAttempts  int

	// Payout schedulers
	HourlyPayoutInterval time.Duration
	DailyPayoutInterval  time.Duration
}

func Load() AppConfig {
	return AppConfig{
		HTTPAddr:     getEnv("HTTP_ADDR", ":8041"),
		RedisAddr:    getEnv("REDIS_ADDR", "redis:6379"),
		RedisPass:    getEnv("REDIS_PASS", ""),
		KafkaBrokers: getEnvSlice("KAFKA_BROKERS", []string{"kafka:9092"}),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "wallet.events"),

		MigrationsDir: getEnv("MIGRATIONS_DIR", "migrations"),

		WithdrawalFeePercent: getEnvDecimal("WITHDRAWAL_FEE_PERCENT", "5"),
		CommissionRates:      getEnvDecimalSlice("COMMISSION_RATES", []string{"10", "5", "2"}),

		OutboxBatchSize:    getEnvInt("OUTBOX_BATCH_SIZE", 20),
		OutboxPollInterval: getEnvDuration("OUTBOX_POLL_INTERVAL", 5*time.Second),
		OutboxMaxAttempts:  getEnvInt("OUTBOX_MAX_ATTEMPTS", 5),

		HourlyPayoutInterval: getEnvDuration("HOURLY_PAYOUT_INTERVAL", time.Hour),
		DailyPayoutInterval:  getEnvDuration("DAILY_PAYOUT_INTERVAL", 24*time.Hour),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvDecimal(key, fallback string) decimal.Decimal {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	}
	d, _ := decimal.NewFromString(fallback)
	return d
}

func getEnvDecimalSlice(key string, fallback []string) []decimal.Decimal {
	raw := fallback
	if v := os.Getenv(key); v != "" {
		raw = strings.Split(v, ",")
	}
	out := make([]decimal.Decimal, 0, len(raw))
	for _, s := range raw {
		d, err := decimal.NewFromString(strings.TrimSpace(s))
		if err != nil {
			continue
		}
		out = append(out, d)
	}
	return out
}
