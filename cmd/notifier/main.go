// Command notifier consumes the notification queue and delivers each event
// through its provider. It needs no database.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/iliyamo/guesthouse-admin/internal/config"
	"github.com/iliyamo/guesthouse-admin/internal/logger"
	"github.com/iliyamo/guesthouse-admin/internal/metrics"
	"github.com/iliyamo/guesthouse-admin/internal/notify"
)

func main() {
	_ = godotenv.Load()

	env := os.Getenv("APP_ENV")
	log, err := logger.New(env, os.Getenv("LOG_LEVEL"))
	if err != nil {
		panic("init logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadNotifyConfig()
	m := metrics.New()

	// metrics only; the API process serves everything else
	addr := os.Getenv("NOTIFIER_METRICS_ADDR")
	if addr == "" {
		addr = ":9102"
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", zap.Error(err))
		}
	}()

	consumer := notify.NewConsumer(cfg, notify.NewRouterFromConfig(ctx, cfg, log), log, m.ObserveNotification)
	log.Info("notifier started", zap.String("queue", cfg.Queue), zap.Int("max_attempts", cfg.MaxAttempts))
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("consumer stopped", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("notifier stopped")
}
