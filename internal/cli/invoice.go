package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/vitwit/invoicepay/types"
	"github.com/vitwit/invoicepay/utils"
)

func printInvoice(cmd *cobra.Command, inv *types.Invoice, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(inv)
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderInvoice(inv, time.Now(), ""))
	return nil
}

func newCreateCmd(g *globalFlags) *cobra.Command {
	var (
		amount      string
		currency    string
		method      string
		recipient   string
		description string
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a donation invoice",
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := utils.ValidateAmount(amount)
			if err != nil {
				return err
			}

			client, err := g.client()
			if err != nil {
				return err
			}
			defer client.Close()

			inv, err := client.CreateInvoice(cmd.Context(), &types.CreateInvoiceRequest{
				AmountFiat:    *value,
				FiatCurrency:  types.FiatCurrency(currency),
				PaymentMethod: types.PaymentMethod(method),
				Recipient:     recipient,
				Description:   description,
			})
			if err != nil {
				return err
			}
			return printInvoice(cmd, inv, asJSON)
		},
	}

	cmd.Flags().StringVar(&amount, "amount", "", "Fiat amount, e.g. 25.00")
	cmd.Flags().StringVar(&currency, "currency", string(types.CurrencyUSD), "Fiat currency (USD, EUR)")
	cmd.Flags().StringVar(&method, "method", string(types.MethodSolanaUSDC), "Payment method")
	cmd.Flags().StringVar(&recipient, "recipient", "", "Recipient the donation is for")
	cmd.Flags().StringVar(&description, "description", "", "Free-form description")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newStatusCmd(g *globalFlags) *cobra.Command {
	var (
		refresh bool
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "status <invoice-id>",
		Short: "Show the current state of an invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := g.client()
			if err != nil {
				return err
			}
			defer client.Close()

			var inv *types.Invoice
			if refresh {
				inv, err = client.Reconciler().CheckStatus(cmd.Context(), args[0])
			} else {
				inv, err = client.GetInvoice(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			return printInvoice(cmd, inv, asJSON)
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Ask the backend to re-read the chain first")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newWatchCmd(g *globalFlags) *cobra.Command {
	var (
		txHash string
		wallet string
	)

	cmd := &cobra.Command{
		Use:   "watch <invoice-id>",
		Short: "Follow an invoice until it settles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client, err := g.client()
			if err != nil {
				return err
			}
			defer client.Close()

			inv, err := client.GetInvoice(ctx, args[0])
			if err != nil {
				return err
			}

			s := client.OpenSession(inv)
			defer s.Close()

			if txHash != "" {
				if _, err := s.Submit(ctx, txHash, wallet); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderInvoice(s.Current(), time.Now(), ""))

			s.Start(ctx)
			for {
				select {
				case u, ok := <-s.Updates():
					if !ok {
						return nil
					}
					fmt.Fprintln(out, renderInvoice(u.Invoice, time.Now(), u.Chain))
				case <-ctx.Done():
					// Stops polling only; the invoice keeps its state on the backend.
					s.StopWaiting()
					fmt.Fprintln(out, dimStyle.Render("stopped watching"))
					return nil
				}
			}
		},
	}

	cmd.Flags().StringVar(&txHash, "tx", "", "Report a broadcast transaction before watching")
	cmd.Flags().StringVar(&wallet, "wallet", "", "Wallet address the transaction was sent from")
	return cmd
}

func newCancelCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel <invoice-id>",
		Short: "Cancel an invoice that has not settled",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			client, err := g.client()
			if err != nil {
				return err
			}
			defer client.Close()

			inv, err := client.GetInvoice(ctx, args[0])
			if err != nil {
				return err
			}
			s := client.OpenSession(inv)
			defer s.Close()

			inv, err = s.Cancel(ctx)
			if err != nil {
				return err
			}
			return printInvoice(cmd, inv, false)
		},
	}
	return cmd
}
