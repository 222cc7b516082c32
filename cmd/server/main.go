// cmd/server/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/koya-caller/internal/app"
	"github.com/unclebandit/koya-caller/internal/config"
	"github.com/unclebandit/koya-caller/internal/logger"
	"github.com/unclebandit/koya-caller/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.AppEnv)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	shutdownTelemetry := telemetry.Setup("koya-caller-api", cfg.OtelEndpoint, cfg.OtelInsecure, log)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	infra, err := app.Connect(context.Background(), cfg, log)
	if err != nil {
		log.Fatal("startup failed", zap.Error(err))
	}
	defer infra.Close()

	services := app.New(cfg, infra, log)

	// With RabbitMQ, webhooks publish to call_outcomes and every process
	// consumes. Without it the webhook handler records in the request.
	if cfg.AMQPURL != "" {
		if err := services.StartOutcomeConsumer(log); err != nil {
			log.Fatal("outcome consumer failed", zap.Error(err))
		}
	}

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      services.Router(cfg, log),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("shutdown error", zap.Error(err))
	}
	log.Info("server stopped")
}
