package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopstore/internal/app"
	"github.com/vladislavdragonenkov/shopstore/internal/version"
)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger(level string) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	parsed, err := log.ParseLevel(level)
	if err != nil {
		parsed = log.InfoLevel
	}
	log.SetLevel(parsed)
}

// readConfig читает конфигурацию из окружения и логирует отброшенные значения.
func readConfig(lookup app.EnvLookup) app.Config {
	cfg, warnings := app.ConfigFromEnv(lookup)
	setupLogger(cfg.LogLevel)
	for _, warning := range warnings {
		log.WithError(warning).Warn("некорректное значение переменной окружения, используется значение по умолчанию")
	}
	return cfg
}

func main() {
	cfg := readConfig(os.LookupEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"grpc_addr":      cfg.GRPCAddr,
		"metrics_addr":   cfg.MetricsAddr,
		"storage_driver": cfg.StorageDriver,
		"kafka":          cfg.KafkaBrokers != "",
		"version":        version.String(),
	}).Info("запускаем shop-store")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("shop-store остановлен")
}
