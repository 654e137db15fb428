package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	_ "github.com/lib/pq"

	"github.com/honeynil/ShopBotLedger/internal/api"
	"github.com/honeynil/ShopBotLedger/internal/config"
	"github.com/honeynil/ShopBotLedger/internal/conversation"
	"github.com/honeynil/ShopBotLedger/internal/handler"
	"github.com/honeynil/ShopBotLedger/internal/infrastructure/auth"
	"github.com/honeynil/ShopBotLedger/internal/infrastructure/kafka"
	"github.com/honeynil/ShopBotLedger/internal/infrastructure/redis"
	"github.com/honeynil/ShopBotLedger/internal/migrations"
	"github.com/honeynil/ShopBotLedger/internal/observability"
	core "github.com/honeynil/ShopBotLedger/internal/repository/postgres"
	"github.com/honeynil/ShopBotLedger/internal/scheduler"
	service "github.com/honeynil/ShopBotLedger/internal/services"
)

const (
	tokenTTL     = 24 * time.Hour
	rateEvery    = 500 * time.Millisecond
	rateBurst    = 5
	shutdownWait = 10 * time.Second
)

func main() {
	// Logs, metrics and traces
	shutdownTracing, metricsHandler := observability.Setup("shopbot-ledger")
	defer shutdownTracing(context.Background())

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Postgres
	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		fatal("failed to open postgres", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		fatal("failed to connect to postgres", err)
	}
	if err := migrations.Apply(ctx, db); err != nil {
		fatal("failed to apply migrations", err)
	}

	userRepo := core.NewPostgresUserRepository(db)
	productRepo := core.NewPostgresProductRepository(db)
	orderRepo := core.NewPostgresOrderRepository(db)
	coinRepo := core.NewPostgresCoinRepository(db)
	walletRepo := core.NewPostgresWalletRepository(db)
	txRepo := core.NewPostgresTransactionRepository(db)
	referralRepo := core.NewPostgresReferralRepository(db)
	discountRepo := core.NewPostgresDiscountRepository(db)
	boardRepo := core.NewPostgresLeaderboardRepository(db)
	confirmationRepo := core.NewPostgresConfirmationRepository(db)

	redisClient, err := redis.NewClient(ctx, cfg.RedisAddr)
	if err != nil {
		fatal("failed to connect to redis", err)
	}
	defer redisClient.Close()

	producer := kafka.NewProducer(cfg.KafkaBrokers)
	defer producer.Close()
	notifier := kafka.NewNotifier(producer, cfg.OutboundTopic)

	// Services
	rng := service.NewLockedRand(time.Now().UnixNano())
	tokens := auth.NewTokenService(cfg.JWTSecret, tokenTTL)
	coins := service.NewCoinService(coinRepo, txRepo, cfg.Economy)
	wallets := service.NewWalletService(walletRepo, txRepo, coins, cfg.Economy)
	discounts := service.NewDiscountService(discountRepo, cfg.Economy)
	catalog := service.NewCatalogService(productRepo)
	orders := service.NewOrderService(orderRepo, productRepo, coins, notifier, cfg.AdminID, cfg.SupportID, cfg.Economy)
	accounts := service.NewAccountService(userRepo, coins, redisClient, tokens, cfg.AdminID, cfg.AdminPasswordHash, cfg.Economy)
	leaderboard := service.NewLeaderboardService(boardRepo, cfg.Economy, rng)
	svc := conversation.Services{
		Accounts:    accounts,
		Catalog:     catalog,
		Orders:      orders,
		Coins:       coins,
		Wallets:     wallets,
		Referrals:   service.NewReferralService(referralRepo, userRepo, coins, wallets, cfg.Economy),
		Discounts:   discounts,
		Leaderboard: leaderboard,
		Spin:        service.NewSpinService(coinRepo, coins, discounts, cfg.Economy, rng),
	}
	if err := catalog.Seed(ctx, cfg.Products); err != nil {
		fatal("failed to seed catalog", err)
	}

	// Scheduled jobs
	cron, err := gocron.NewScheduler()
	if err != nil {
		fatal("failed to create scheduler", err)
	}
	confirmations := scheduler.NewConfirmationScheduler(cron, confirmationRepo, orders, cfg.AutoConfirmDelay, cfg.SweepInterval)
	if err := confirmations.Recover(ctx); err != nil {
		fatal("failed to recover confirmations", err)
	}
	broadcaster := scheduler.NewBroadcaster(cron, leaderboard, notifier, cfg.AnnounceChatID, cfg.BroadcastInterval, cfg.BroadcastBackoff)
	if err := broadcaster.Start(ctx); err != nil {
		fatal("failed to start broadcaster", err)
	}
	cron.Start()

	// Conversation
	machine := conversation.NewMachine(svc, confirmations, conversation.NewRedisSessionStore(redisClient), conversation.Options{
		SupportID: cfg.SupportID,
		RateEvery: rateEvery,
		RateBurst: rateBurst,
	})
	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.UpdatesTopic, cfg.ConsumerGroup).
		WithDeadLetter(producer, cfg.DeadLetterTopic)
	defer consumer.Close()
	go consumer.Consume(ctx, conversation.NewDispatcher(machine, notifier).HandleMessage)

	// HTTP
	h := handler.NewHandler(machine, accounts, orders, coins, wallets)
	router := api.SetupRouter(h, api.RouterConfig{
		RedisClient:   redisClient,
		Tokens:        tokens,
		AdminID:       cfg.AdminID,
		WebhookSecret: cfg.WebhookSecret,
		Metrics:       metricsHandler,
	})
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("starting server", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("server failed", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWait)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
	if err := cron.Shutdown(); err != nil {
		slog.Error("scheduler shutdown failed", "error", err)
	}
	slog.Info("server stopped")
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
