package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"landed-bot/internal/bot"
	"landed-bot/internal/config"
	"landed-bot/internal/intake"
	"landed-bot/internal/orders"
	"landed-bot/internal/report"
	"landed-bot/internal/storage"
	"landed-bot/pkg/fxrates"
	"landed-bot/pkg/logger"
	"landed-bot/pkg/redis"
)

func main() {
	migrate := flag.String("migrate", "", "run a migration command (up, down, status) and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	zapLogger, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer zapLogger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	redisClient := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.StateTTL)
	defer redisClient.Close()

	if err := redisClient.Ping(ctx); err != nil {
		zapLogger.Warn("Redis is not reachable, caches will miss", zap.Error(err))
	}

	pgStorage, err := storage.NewPostgresStorage(ctx, *cfg, redisClient, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to init PostgreSQL storage", zap.Error(err))
	}
	defer pgStorage.Close()

	if *migrate != "" {
		if err := runMigrate(ctx, *migrate, pgStorage, zapLogger); err != nil {
			zapLogger.Fatal("Migration failed", zap.String("command", *migrate), zap.Error(err))
		}
		return
	}

	if err := storage.RunMigrations(ctx, pgStorage.DB(), zapLogger); err != nil {
		zapLogger.Fatal("Failed to apply migrations", zap.Error(err))
	}

	defaults, err := cfg.PricingDefaults()
	if err != nil {
		zapLogger.Fatal("Invalid pricing defaults", zap.Error(err))
	}
	if _, err := pgStorage.EnsurePricingSettings(ctx, defaults); err != nil {
		zapLogger.Fatal("Failed to seed pricing settings", zap.Error(err))
	}

	loc, err := cfg.Location()
	if err != nil {
		zapLogger.Fatal("Invalid timezone", zap.Error(err))
	}

	orderService := orders.NewService(pgStorage, zapLogger)
	reportService := report.NewService(pgStorage, loc, zapLogger)
	rates := fxrates.NewClient(cfg.FX.BaseURL, cfg.FX.APIKey, cfg.FX.RequestTimeout, cfg.FX.MaxElapsed, zapLogger)

	tgBot, err := bot.New(cfg, bot.Deps{
		Orders:  orderService,
		Reports: reportService,
		Store:   pgStorage,
		Rates:   rates,
		Redis:   redisClient,
	}, loc, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create bot", zap.Error(err))
	}

	webhook := intake.NewWebhookHandler(orderService, tgBot, cfg.Intake.Token, zapLogger)
	server := intake.NewServer(cfg.Intake, webhook.Routes(), zapLogger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return tgBot.Start(gctx)
	})
	g.Go(func() error {
		return server.Run(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		zapLogger.Fatal("Service stopped with error", zap.Error(err))
	}

	zapLogger.Info("Service shutdown gracefully")
}

func runMigrate(ctx context.Context, command string, st *storage.PostgresStorage, logger *zap.Logger) error {
	switch command {
	case "up":
		return storage.RunMigrations(ctx, st.DB(), logger)
	case "down":
		return storage.RollbackMigration(ctx, st.DB(), logger)
	case "status":
		return storage.Status(ctx, st.DB(), logger)
	default:
		return fmt.Errorf("unknown migrate command %q", command)
	}
}
