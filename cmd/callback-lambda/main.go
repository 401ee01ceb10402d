package main

import (
	"context"
	"log"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/berniyo/mpesa-lambda/internal/handler"
	"github.com/berniyo/mpesa-lambda/internal/mpesa"
)

// Callback event names forwarded downstream.
const (
	eventPaymentCallback     = "mpesa.payment"
	eventTransactionCallback = "mpesa.transaction"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	notifyURL := strings.TrimSpace(os.Getenv("NOTIFY_URL"))
	if notifyURL == "" {
		logger.Fatal("NOTIFY_URL must be set")
	}
	notifier, err := handler.NewHTTPSNotifier(notifyURL, os.Getenv("NOTIFY_SECRET"), nil)
	if err != nil {
		logger.Fatal("failed to configure notifier", zap.Error(err))
	}

	opts := []handler.WebhookOption{
		handler.WithWebhookLogger(logger),
		handler.WithTransactionHandler(func(ctx context.Context, result mpesa.TransactionResult) error {
			return notifier.Notify(ctx, eventTransactionCallback, result)
		}),
	}
	// Sandbox callbacks often arrive through tunnels outside the gateway ranges.
	if os.Getenv("CALLBACK_ALLOW_ANY_IP") == "true" {
		opts = append(opts, handler.WithAllowList(func(string) bool { return true }))
	}

	receiver := handler.NewWebhookReceiver(func(ctx context.Context, result mpesa.Result) error {
		return notifier.Notify(ctx, eventPaymentCallback, result)
	}, opts...)

	lambda.Start(receiver.HandleAPIGateway)
}
