package main

import (
	"log"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/berniyo/mpesa-lambda/internal/handler"
	"github.com/berniyo/mpesa-lambda/internal/mpesa"
)

func main() {
	values, err := mpesa.LoadEnv(".env")
	if err != nil {
		log.Fatalf("failed to load environment: %v", err)
	}

	cfg, err := mpesa.NewConfig(values)
	if err != nil {
		log.Fatalf("failed to configure mpesa client: %v", err)
	}

	logger := newLogger(cfg.Debug)
	defer func() { _ = logger.Sync() }()

	client, err := mpesa.NewClient(values, mpesa.WithLogger(logger))
	if err != nil {
		logger.Fatal("failed to configure mpesa client", zap.Error(err))
	}

	opts := []handler.Option{handler.WithLogger(logger)}

	if notifyURL := strings.TrimSpace(os.Getenv("NOTIFY_URL")); notifyURL != "" {
		notifier, err := handler.NewHTTPSNotifier(notifyURL, os.Getenv("NOTIFY_SECRET"), nil)
		if err != nil {
			logger.Fatal("failed to configure notifier", zap.Error(err))
		}
		opts = append(opts, handler.WithNotifier(notifier))
	}

	processor := handler.NewProcessor(client, opts...)

	lambda.Start(processor.Handle)
}

func newLogger(debug bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	return logger
}
