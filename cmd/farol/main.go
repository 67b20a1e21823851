package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/ebueeno/farol/internal/broker"
	"github.com/ebueeno/farol/internal/config"
	"github.com/ebueeno/farol/internal/credentials"
	"github.com/ebueeno/farol/internal/httpapi"
	"github.com/ebueeno/farol/internal/logging"
	"github.com/ebueeno/farol/internal/observability"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config error")
	}
	logging.Init(cfg.LogLevel)

	metrics := observability.NewMetrics(cfg.MetricsNamespace)
	resolver := credentials.Default(cfg.SecretFilePath)
	sessionBroker := broker.New(cfg, resolver, metrics)
	api := httpapi.New(cfg, sessionBroker, metrics)

	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Info().Str("addr", cfg.BindAddr).Str("model", cfg.Model).Str("voice", cfg.Voice).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
		_ = httpServer.Close()
	}

	log.Info().Msg("shutdown complete")
}
