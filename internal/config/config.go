package config

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	PostgresDSN       string
	RedisAddr         string
	KafkaBrokers      []string
	HTTPAddr          string
	EscrowWallet      string
	CommissionPercent float64
	ReleaseSecret     string
	TelegramAdminID   string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Warn("failed to load .env file, using default values", "error", err)
	}

	cfg := &Config{
		PostgresDSN:       os.Getenv("POSTGRES_DSN"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		KafkaBrokers:      []string{os.Getenv("KAFKA_BROKER")},
		HTTPAddr:          os.Getenv("HTTP_ADDR"),
		EscrowWallet:      os.Getenv("ESCROW_WALLET_ADDRESS"),
		CommissionPercent: getEnvFloat("COMMISSION_PERCENT", 1.5),
		ReleaseSecret:     os.Getenv("RELEASE_SECRET"),
		TelegramAdminID:   os.Getenv("TELEGRAM_ADMIN_ID"),
	}

	if cfg.PostgresDSN == "" {
		cfg.PostgresDSN = "host=localhost user=postgres password=postgres dbname=p2p sslmode=disable"
	}
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = "localhost:6379"
	}
	if len(cfg.KafkaBrokers) == 1 && cfg.KafkaBrokers[0] == "" {
		cfg.KafkaBrokers = []string{"localhost:9092"}
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.EscrowWallet == "" {
		cfg.EscrowWallet = "TXxxxxxx"
	}
	if cfg.ReleaseSecret == "" {
		cfg.ReleaseSecret = "secure_key_here"
	}

	slog.Info("config loaded",
		"postgres_dsn", cfg.PostgresDSN,
		"redis_addr", cfg.RedisAddr,
		"kafka_brokers", cfg.KafkaBrokers,
		"http_addr", cfg.HTTPAddr,
		"escrow_wallet", cfg.EscrowWallet,
		"commission_percent", cfg.CommissionPercent)
	return cfg
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
