package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/berniyo/mpesa-lambda/internal/mpesa"
)

var Version = "dev"

var (
	envFiles []string
	verbose  bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "mpesactl",
		Short:         "Operate the M-Pesa gateway from the command line",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "dotenv files to load before the process environment")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log request and response bodies")

	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(stkPushCmd())
	rootCmd.AddCommand(stkQueryCmd())
	rootCmd.AddCommand(balanceCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

// loadClient reads configuration and builds a gateway client.
func loadClient() (*mpesa.Client, *zap.Logger, error) {
	values, err := mpesa.LoadEnv(envFiles...)
	if err != nil {
		return nil, nil, err
	}
	if verbose {
		values[mpesa.KeyDebug] = "true"
	}

	logger, err := newLogger()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}

	client, err := mpesa.NewClient(values, mpesa.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	return client, logger, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return amount, nil
}
