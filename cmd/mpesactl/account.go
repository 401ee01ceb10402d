package main

import (
	"github.com/spf13/cobra"

	"github.com/berniyo/mpesa-lambda/internal/mpesa"
)

func balanceCmd() *cobra.Command {
	var (
		remarks   string
		resultURL string
	)

	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Request the short code balance",
		Long: `Request the short code balance. The gateway only acknowledges the request;
the figures are delivered to the result URL.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, logger, err := loadClient()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			resp, err := client.AccountBalance(cmd.Context(), mpesa.AccountBalanceRequest{
				Remarks:    remarks,
				ResultURLs: mpesa.ResultURLs{ResultURL: resultURL, QueueTimeOutURL: resultURL},
			})
			if err != nil {
				return err
			}
			return printJSON(resp)
		},
	}

	cmd.Flags().StringVar(&remarks, "remarks", "", "remarks sent with the request")
	cmd.Flags().StringVar(&resultURL, "result-url", "", "override the configured callback URL")

	return cmd
}

func statusCmd() *cobra.Command {
	var (
		remarks   string
		occasion  string
		resultURL string
	)

	cmd := &cobra.Command{
		Use:   "status [transaction-id]",
		Short: "Request the status of a completed transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, logger, err := loadClient()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			resp, err := client.TransactionStatus(cmd.Context(), mpesa.TransactionStatusRequest{
				TransactionID: args[0],
				Remarks:       remarks,
				Occasion:      occasion,
				ResultURLs:    mpesa.ResultURLs{ResultURL: resultURL, QueueTimeOutURL: resultURL},
			})
			if err != nil {
				return err
			}
			return printJSON(resp)
		},
	}

	cmd.Flags().StringVar(&remarks, "remarks", "", "remarks sent with the request")
	cmd.Flags().StringVar(&occasion, "occasion", "", "optional occasion")
	cmd.Flags().StringVar(&resultURL, "result-url", "", "override the configured callback URL")

	return cmd
}
