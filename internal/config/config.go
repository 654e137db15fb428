package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/honeynil/ShopBotLedger/internal/models"
)

type Config struct {
	PostgresDSN     string
	RedisAddr       string
	KafkaBrokers    []string
	UpdatesTopic    string
	OutboundTopic   string
	DeadLetterTopic string
	ConsumerGroup   string
	HTTPAddr        string
	MetricsAddr     string
	JWTSecret       string
	WebhookSecret   string

	AdminID           int64
	AdminPasswordHash string
	SupportID         string
	AnnounceChatID    int64

	AutoConfirmDelay  time.Duration
	SweepInterval     time.Duration
	BroadcastInterval time.Duration
	BroadcastBackoff  time.Duration

	Economy  Economy
	Products []models.Product
}

// Economy holds every tunable constant of the coin and wallet ledgers.
type Economy struct {
	PurchaseReward      int64
	SignupBonus         int64
	DailyReward         int64
	DailyWindow         time.Duration
	ReferralBonus       int64
	ReferralThreshold   int
	ReferralWalletBonus decimal.Decimal
	WithdrawalRebate    int64
	MinWithdraw         decimal.Decimal
	MinConvert          int64
	ConvertUnit         int64
	CryptoPerUnit       decimal.Decimal
	WalletNetworks      []string
	DiscountPercent     int
	DiscountTTL         time.Duration
	SpinWindow          time.Duration
	FakeBump            int
}

func DefaultEconomy() Economy {
	return Economy{
		PurchaseReward:      50,
		SignupBonus:         100,
		DailyReward:         10,
		DailyWindow:         24 * time.Hour,
		ReferralBonus:       100,
		ReferralThreshold:   5,
		ReferralWalletBonus: decimal.NewFromInt(1),
		WithdrawalRebate:    5,
		MinWithdraw:         decimal.NewFromInt(10),
		MinConvert:          300,
		ConvertUnit:         300,
		CryptoPerUnit:       decimal.RequireFromString("0.1"),
		WalletNetworks:      []string{"tron", "evm"},
		DiscountPercent:     10,
		DiscountTTL:         24 * time.Hour,
		SpinWindow:          24 * time.Hour,
		FakeBump:            25,
	}
}

func DefaultProducts() []models.Product {
	return []models.Product{
		{Key: "mafia", Name: "Mafia Nights cheat", Price: 450000, CardNumber: "6037-9972-1234-5678", Stock: models.UnlimitedStock, Active: true},
		{Key: "zodiac", Name: "Mafia Nights Zodiac cheat", Price: 550000, CardNumber: "6219-8612-3456-7890", Stock: models.UnlimitedStock, Active: true},
	}
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Warn("failed to load .env file, using default values", "error", err)
	}

	cfg := &Config{
		PostgresDSN:       os.Getenv("POSTGRES_DSN"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		KafkaBrokers:      strings.Split(os.Getenv("KAFKA_BROKER"), ","),
		UpdatesTopic:      getenv("KAFKA_UPDATES_TOPIC", "bot.updates"),
		OutboundTopic:     getenv("KAFKA_OUTBOUND_TOPIC", "bot.outbound"),
		DeadLetterTopic:   getenv("KAFKA_DEAD_LETTER_TOPIC", "bot.updates.dlq"),
		ConsumerGroup:     getenv("KAFKA_GROUP", "shopbot-ledger"),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		MetricsAddr:       getenv("METRICS_ADDR", ":9090"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		WebhookSecret:     os.Getenv("WEBHOOK_SECRET"),
		AdminID:           getInt("ADMIN_ID", 7641419665),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		SupportID:         getenv("SUPPORT_ID", "@redhotmafia"),
		AnnounceChatID:    getInt("ANNOUNCE_CHAT_ID", 0),
		AutoConfirmDelay:  getDuration("AUTO_CONFIRM_DELAY", time.Hour),
		SweepInterval:     getDuration("SWEEP_INTERVAL", time.Minute),
		BroadcastInterval: getDuration("BROADCAST_INTERVAL", 6*time.Hour),
		BroadcastBackoff:  getDuration("BROADCAST_BACKOFF", 30*time.Second),
		Economy:           DefaultEconomy(),
		Products:          DefaultProducts(),
	}

	if cfg.PostgresDSN == "" {
		cfg.PostgresDSN = "host=localhost user=postgres password=postgres dbname=shopbot sslmode=disable"
	}
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = "localhost:6379"
	}
	if len(cfg.KafkaBrokers) == 1 && cfg.KafkaBrokers[0] == "" {
		cfg.KafkaBrokers = []string{"localhost:9092"}
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "supersecret"
	}
	if networks := os.Getenv("WALLET_NETWORKS"); networks != "" {
		cfg.Economy.WalletNetworks = strings.Split(networks, ",")
	}
	if rate := os.Getenv("CRYPTO_PER_UNIT"); rate != "" {
		if d, err := decimal.NewFromString(rate); err == nil && d.IsPositive() {
			cfg.Economy.CryptoPerUnit = d
		} else {
			slog.Warn("ignoring invalid CRYPTO_PER_UNIT", "value", rate)
		}
	}

	slog.Info("config loaded",
		"redis_addr", cfg.RedisAddr,
		"kafka_brokers", cfg.KafkaBrokers,
		"http_addr", cfg.HTTPAddr,
		"admin_id", cfg.AdminID,
		"auto_confirm_delay", cfg.AutoConfirmDelay)
	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		slog.Warn("invalid integer in env, using default", "key", key, "value", v)
		return def
	}
	return n
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("invalid duration in env, using default", "key", key, "value", v)
		return def
	}
	return d
}
