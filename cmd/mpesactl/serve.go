package main

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/berniyo/mpesa-lambda/internal/handler"
	"github.com/berniyo/mpesa-lambda/internal/mpesa"
)

func serveCmd() *cobra.Command {
	var (
		addr     string
		prefix   string
		allowAny bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Receive gateway callbacks and print them",
		Long: `Run a callback receiver for local development.

Examples:
  mpesactl serve --addr :8080
  mpesactl serve --prefix /hooks/mpesa --allow-any`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return fmt.Errorf("failed to build logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			opts := []handler.WebhookOption{
				handler.WithWebhookLogger(logger),
				handler.WithTransactionHandler(func(ctx context.Context, result mpesa.TransactionResult) error {
					return printJSON(result)
				}),
			}
			if allowAny {
				opts = append(opts, handler.WithAllowList(func(string) bool { return true }))
			}
			receiver := handler.NewWebhookReceiver(func(ctx context.Context, result mpesa.Result) error {
				return printJSON(result)
			}, opts...)

			if !verbose {
				gin.SetMode(gin.ReleaseMode)
			}
			router := gin.New()
			router.Use(gin.Recovery())
			if err := router.SetTrustedProxies(nil); err != nil {
				return err
			}
			handler.RegisterWebhookRoutes(router, prefix, receiver)

			fmt.Printf("Listening for callbacks at http://localhost%s%s/{callback,result}\n", addr, prefix)
			return router.Run(addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&prefix, "prefix", "/mpesa", "route prefix")
	cmd.Flags().BoolVar(&allowAny, "allow-any", false, "accept callbacks from any address (tunnels)")

	return cmd
}
