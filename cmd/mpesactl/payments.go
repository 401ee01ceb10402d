package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/berniyo/mpesa-lambda/internal/mpesa"
)

func tokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Fetch an access token and print it",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, logger, err := loadClient()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			token, err := client.Token(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
}

func stkPushCmd() *cobra.Command {
	var (
		reference   string
		description string
		callbackURL string
	)

	cmd := &cobra.Command{
		Use:   "stk-push [phone] [amount]",
		Short: "Prompt a customer's phone for payment",
		Long: `Send a payment prompt to a customer's phone.

Examples:
  mpesactl stk-push 0712345678 10 --reference INV-1
  mpesactl stk-push +254712345678 250 --reference ORDER-9 --description "Order 9"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}

			client, logger, err := loadClient()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			resp, err := client.STKPush(cmd.Context(), mpesa.STKPushRequest{
				PhoneNumber:      args[0],
				Amount:           amount,
				AccountReference: reference,
				TransactionDesc:  description,
				CallbackURL:      callbackURL,
			})
			if err != nil {
				return err
			}
			return printJSON(resp)
		},
	}

	cmd.Flags().StringVarP(&reference, "reference", "r", "", "account reference shown to the customer")
	cmd.Flags().StringVarP(&description, "description", "d", "", "transaction description")
	cmd.Flags().StringVar(&callbackURL, "callback-url", "", "override the configured callback URL")
	_ = cmd.MarkFlagRequired("reference")

	return cmd
}

func stkQueryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stk-query [checkout-request-id]",
		Short: "Query the state of a payment prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, logger, err := loadClient()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			resp, err := client.STKQuery(cmd.Context(), args[0])
			if err != nil {
				if mpesa.IsKind(err, mpesa.KindAPI) {
					if e, ok := mpesa.AsError(err); ok && e.Code == mpesa.CodeTransactionInProgress {
						fmt.Println("pending: the customer has not answered the prompt yet")
						return nil
					}
				}
				return err
			}
			return printJSON(resp)
		},
	}
}
