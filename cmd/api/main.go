package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/docs-assistant/backend/internal/config"
	"github.com/zhouzirui/docs-assistant/backend/internal/handler"
	"github.com/zhouzirui/docs-assistant/backend/internal/observability"
	"github.com/zhouzirui/docs-assistant/backend/internal/service/chat"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "docs assistant: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, err := observability.Setup(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if envErr != nil {
		logger.Debug("no .env file loaded, using process environment", zap.Error(envErr))
	}

	cat, err := cfg.Assistant.LoadCatalog()
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	chatSvc, err := chat.NewService(ctx, chat.Options{
		Catalog:     cat,
		MinDelay:    cfg.Assistant.MinDelay,
		MaxDelay:    cfg.Assistant.MaxDelay,
		FailureRate: cfg.Assistant.FailureRate,
		Seed:        cfg.Assistant.Seed,
		Logger:      logger.Named("chat"),
	})
	if err != nil {
		return fmt.Errorf("init chat service: %w", err)
	}

	logger.Info("assistant configured",
		zap.Int("intents", len(cat.Intents)),
		zap.Int("fallback_replies", len(cat.Fallback)),
		zap.Duration("min_delay", cfg.Assistant.MinDelay),
		zap.Duration("max_delay", cfg.Assistant.MaxDelay),
		zap.Float64("failure_rate", cfg.Assistant.FailureRate),
	)

	router := handler.NewRouter(chatSvc, cat.Profile, cfg.Server.CORSOrigins, logger)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("docs assistant backend listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		srvErr := srv.Shutdown(shutdownCtx)
		svcErr := chatSvc.Shutdown(shutdownCtx)
		return errors.Join(srvErr, svcErr)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
