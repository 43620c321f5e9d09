package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type Config struct {
	DB       DBConfig
	Storage  StorageConfig
	Telegram TelegramConfig
	HTTP     HTTPConfig
	Pricing  PricingConfig
	Checkout CheckoutConfig
	Auth     AuthConfig
	Broker   BrokerConfig
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
}

type StorageConfig struct {
	Backend           string // "memory" or "postgres"
	CartTTL           time.Duration
	CartPurgeSchedule string
}

type TelegramConfig struct {
	Token      string
	AdminToken string // catalog admin bot; empty disables it
	AdminLogin string
	AdminID    int64 // 0 = any Telegram user who knows AdminLogin
}

type HTTPConfig struct {
	Addr        string
	CORSOrigins []string
}

type PricingConfig struct {
	TaxRate               decimal.Decimal
	DeliveryFee           decimal.Decimal
	FreeDeliveryThreshold decimal.Decimal
}

type CheckoutConfig struct {
	SuccessRate   float64
	PaymentDelay  time.Duration
	EstimatedTime string
}

type AuthConfig struct {
	JWTSecret  string
	LoginDelay time.Duration
	TokenTTL   time.Duration
}

type BrokerConfig struct {
	AMQPURL string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	port, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("DB_PORT: %w", err)
	}
	maxConns, err := strconv.ParseInt(getEnv("DB_MAX_CONNS", "10"), 10, 32)
	if err != nil || maxConns < 1 {
		return nil, fmt.Errorf("DB_MAX_CONNS must be a positive integer")
	}

	cfg := &Config{
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     port,
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "storefront"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(maxConns),
		},
		Storage: StorageConfig{
			Backend:           strings.ToLower(getEnv("STORAGE_BACKEND", StorageMemory)),
			CartPurgeSchedule: getEnv("CART_PURGE_SCHEDULE", "@every 1h"),
		},
		Telegram: TelegramConfig{
			Token:      getEnv("TOKEN", ""),
			AdminToken: getEnv("ADMIN_TOKEN", ""),
			AdminLogin: strings.TrimSpace(getEnv("ADMIN_LOGIN", "")),
		},
		HTTP: HTTPConfig{
			Addr:        os.Getenv("HTTP_ADDR"),
			CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")),
		},
		Checkout: CheckoutConfig{
			EstimatedTime: getEnv("ESTIMATED_TIME", "30-40"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Broker: BrokerConfig{
			AMQPURL: getEnv("AMQP_URL", ""),
		},
	}
	if v := os.Getenv("ADMIN_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ADMIN_ID: %w", err)
		}
		cfg.Telegram.AdminID = id
	}
	if cfg.Telegram.AdminToken != "" && cfg.Telegram.AdminLogin == "" {
		return nil, fmt.Errorf("ADMIN_LOGIN must be set when ADMIN_TOKEN is set")
	}
	if _, set := os.LookupEnv("HTTP_ADDR"); !set {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.Storage.Backend != StorageMemory && cfg.Storage.Backend != StoragePostgres {
		return nil, fmt.Errorf("STORAGE_BACKEND: unknown backend %q", cfg.Storage.Backend)
	}

	decimals := []struct {
		key, def string
		dst      *decimal.Decimal
	}{
		{"TAX_RATE", "0.08", &cfg.Pricing.TaxRate},
		{"DELIVERY_FEE", "4.99", &cfg.Pricing.DeliveryFee},
		{"FREE_DELIVERY_THRESHOLD", "30", &cfg.Pricing.FreeDeliveryThreshold},
	}
	for _, d := range decimals {
		v, err := decimal.NewFromString(getEnv(d.key, d.def))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.key, err)
		}
		if v.IsNegative() {
			return nil, fmt.Errorf("%s must be >= 0", d.key)
		}
		*d.dst = v
	}

	durations := []struct {
		key, def string
		dst      *time.Duration
	}{
		{"CART_TTL", "720h", &cfg.Storage.CartTTL},
		{"PAYMENT_DELAY", "2s", &cfg.Checkout.PaymentDelay},
		{"LOGIN_DELAY", "1s", &cfg.Auth.LoginDelay},
		{"TOKEN_TTL", "24h", &cfg.Auth.TokenTTL},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(getEnv(d.key, d.def))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = v
	}

	rate, err := strconv.ParseFloat(getEnv("PAYMENT_SUCCESS_RATE", "0.8"), 64)
	if err != nil {
		return nil, fmt.Errorf("PAYMENT_SUCCESS_RATE: %w", err)
	}
	if rate < 0 || rate > 1 {
		return nil, fmt.Errorf("PAYMENT_SUCCESS_RATE must be between 0 and 1")
	}
	cfg.Checkout.SuccessRate = rate

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
