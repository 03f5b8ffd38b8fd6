// Package config centralizes the environment-variable reads every process
// in this module needs, loading a local .env file first (for development)
// and falling back to the system environment, via godotenv.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/obedmokua0/sample-digital-wallet-platform/internal/domain"
)

// Config holds every setting a process in this module needs, with
// local-dev fallbacks for anything left unset.
type Config struct {
	DBUser string
	DBPass string
	DBHost string
	DBName string

	RedisHost string
	RedisPort string

	RabbitUser string
	RabbitPass string
	RabbitHost string
	Exchange   string

	MongoUser string
	MongoPass string
	MongoHost string
	MongoDB   string

	HTTPPort string

	RateLimitWallet int
	RateLimitUser   int
	RateLimitGlobal int

	RelayPollInterval time.Duration
	RelayBatchSize    int

	MaxTransactionAmount map[domain.Currency]domain.Money
	MaxWalletBalance     map[domain.Currency]domain.Money
}

// Load reads .env if present (silently falling back to the system
// environment otherwise) and fills in defaults for anything unset.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		DBUser:     getenv("DB_USER", "ledger"),
		DBPass:     getenv("DB_PASSWORD", "secret123"),
		DBHost:     getenv("DB_HOST", "localhost"),
		DBName:     getenv("DB_NAME", "wallet_ledger"),
		RedisHost:  getenv("REDIS_HOST", "localhost"),
		RedisPort:  getenv("REDIS_PORT", "6379"),
		RabbitUser: getenv("RABBITMQ_USER", "guest"),
		RabbitPass: getenv("RABBITMQ_PASS", "guest"),
		RabbitHost: getenv("RABBITMQ_HOST", "localhost"),
		Exchange:   getenv("LEDGER_EXCHANGE", "wallet.events"),
		MongoUser:  getenv("MONGO_USER", ""),
		MongoPass:  getenv("MONGO_PASS", ""),
		MongoHost:  getenv("MONGO_HOST", "localhost"),
		MongoDB:    getenv("MONGO_DB", "wallet_ledger_audit"),
		HTTPPort:   getenv("HTTP_PORT", "8080"),

		RateLimitWallet: getenvInt("RATE_LIMIT_WALLET_PER_MIN", 60),
		RateLimitUser:   getenvInt("RATE_LIMIT_USER_PER_MIN", 300),
		RateLimitGlobal: getenvInt("RATE_LIMIT_GLOBAL_PER_MIN", 0),

		RelayPollInterval: getenvDuration("RELAY_POLL_INTERVAL", time.Second),
		RelayBatchSize:    getenvInt("RELAY_BATCH_SIZE", 100),

		MaxTransactionAmount: getenvMoneyByCurrency("MAX_TRANSACTION_AMOUNT"),
		MaxWalletBalance:     getenvMoneyByCurrency("MAX_WALLET_BALANCE"),
	}
	return cfg
}

// PostgresDSN builds a libpq-style connection string for pgxpool.
func (c Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:5432/%s?sslmode=disable", c.DBUser, c.DBPass, c.DBHost, c.DBName)
}

// RedisAddr builds the host:port go-redis expects.
func (c Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

// RabbitURL builds the amqp connection URL.
func (c Config) RabbitURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:5672/", c.RabbitUser, c.RabbitPass, c.RabbitHost)
}

// MongoURI builds the mongodb connection URI.
func (c Config) MongoURI() string {
	return fmt.Sprintf("mongodb://%s:%s@%s:27017", c.MongoUser, c.MongoPass, c.MongoHost)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// getenvMoneyByCurrency parses a comma-separated CURRENCY:AMOUNT list, e.g.
// "USD:10000.00,EUR:9000.00", into a per-currency bound. A currency absent
// from the list is left unbounded. Malformed entries are logged and
// skipped rather than failing startup.
func getenvMoneyByCurrency(key string) map[domain.Currency]domain.Money {
	out := map[domain.Currency]domain.Money{}
	v := os.Getenv(key)
	if v == "" {
		return out
	}
	for _, entry := range strings.Split(v, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 2)
		if len(parts) != 2 {
			log.Warn().Str("env", key).Str("entry", entry).Msg("malformed currency:amount entry, skipping")
			continue
		}
		currency := domain.Currency(strings.TrimSpace(parts[0]))
		amount, err := domain.ParseMoney(strings.TrimSpace(parts[1]))
		if err != nil {
			log.Warn().Str("env", key).Str("entry", entry).Err(err).Msg("malformed amount, skipping")
			continue
		}
		out[currency] = amount
	}
	return out
}
