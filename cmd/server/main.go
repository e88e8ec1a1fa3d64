package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"

	"github.com/Skufu/medsafe/internal/checker"
	"github.com/Skufu/medsafe/internal/config"
	"github.com/Skufu/medsafe/internal/kb"
	"github.com/Skufu/medsafe/internal/logging"
	"github.com/Skufu/medsafe/internal/metrics"
	"github.com/Skufu/medsafe/internal/server"
	"github.com/Skufu/medsafe/internal/storage"
)

func main() {
	cfg, err := config.Load(viper.New(), os.Getenv("MEDSAFE_CONFIG"))
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	gin.SetMode(cfg.GinMode)

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	m := metrics.New()
	app, err := newApp(ctx, cfg, logger, m)
	if err != nil {
		logger.Fatal("knowledge base unavailable", logging.Err(err))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", logging.Err(err))
		}
	}()

	logger.Info("server listening",
		logging.String("addr", srv.Addr),
		logging.String("storage", cfg.Storage.Driver),
		logging.Bool("admin", cfg.AdminToken != ""))
	waitForShutdown(srv, logger)

	if err := app.store.Close(); err != nil {
		logger.Error("close storage", logging.Err(err))
	}
}

type app struct {
	store  kb.Store
	router *gin.Engine
}

// newApp opens the KB and wires the checker and router around it. A KB
// that cannot be loaded is an error; the service must not start on it.
func newApp(ctx context.Context, cfg *config.Config, logger logging.Logger, m *metrics.Metrics) (*app, error) {
	store, err := storage.OpenStore(ctx, cfg,
		kb.WithLogger(logger.Named("kb")),
		kb.WithObserver(m.ObserveKBUpdate))
	if err != nil {
		return nil, fmt.Errorf("open knowledge base: %w", err)
	}

	chk := checker.New(store,
		checker.WithMaxExhaustive(cfg.Detector.MaxExhaustive),
		checker.WithCacheTTL(cfg.Cache.TTL),
		checker.WithRecorder(m),
		checker.WithLogger(logger.Named("checker")))

	var health server.HealthChecker
	if hc, ok := store.(server.HealthChecker); ok {
		health = hc
	}

	router := server.NewRouter(server.Options{
		Checker:    chk,
		Store:      store,
		Health:     health,
		Metrics:    m,
		Logger:     logger.Named("http"),
		AdminToken: cfg.AdminToken,
		RateLimit:  cfg.RateLimit,
	})
	return &app{store: store, router: router}, nil
}

func waitForShutdown(srv *http.Server, logger logging.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", logging.Err(err))
	}
}
