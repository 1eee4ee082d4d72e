package main

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ezbirr/p2p-exchange/internal/api"
	"github.com/ezbirr/p2p-exchange/internal/config"
	"github.com/ezbirr/p2p-exchange/internal/infrastructure/kafka"
	"github.com/ezbirr/p2p-exchange/internal/infrastructure/redis"
	"github.com/ezbirr/p2p-exchange/internal/observability"
	core "github.com/ezbirr/p2p-exchange/internal/repository/postgres"
	service "github.com/ezbirr/p2p-exchange/internal/services"
	_ "github.com/lib/pq"
)

func main() {
	shutdown := observability.Setup("p2p-exchange")
	defer shutdown(context.Background())

	cfg := config.Load()

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer db.Close()
	if err := core.InitMigration(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	userRepo := core.NewPostgresUserRepository(db)
	listingRepo := core.NewPostgresListingRepository(db)
	dealRepo := core.NewPostgresDealRepository(db)
	logRepo := core.NewPostgresLogRepository(db)

	redisClient, err := redis.NewClient(cfg.RedisAddr)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	producer := kafka.NewProducer(cfg.KafkaBrokers)
	defer producer.Close()

	svc := service.NewExchangeService(userRepo, listingRepo, dealRepo, logRepo, redisClient, producer, cfg)

	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	notifier := kafka.NewConsumer(cfg.KafkaBrokers, kafka.DealEventsTopic, "p2p-exchange-notifier", cfg.TelegramAdminID)
	go notifier.Consume(consumerCtx)
	defer notifier.Close()
	defer stopConsumer()

	router := api.SetupRouter(svc)
	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}
	go func() {
		slog.Info("starting server", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}
	slog.Info("server stopped")
}
