package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/vitwit/invoicepay/payload"
	"github.com/vitwit/invoicepay/tokens"
	"github.com/vitwit/invoicepay/types"
	"github.com/vitwit/invoicepay/utils"
)

// readInvoice loads an invoice snapshot from path, or stdin for "-"
func readInvoice(cmd *cobra.Command, path string) (*types.Invoice, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading invoice: %w", err)
	}
	return utils.ParseInvoice(data)
}

func newURICmd() *cobra.Command {
	var (
		invoicePath string
		label       string
		message     string
		memo        string
	)

	cmd := &cobra.Command{
		Use:   "uri",
		Short: "Print the Solana Pay URI for an invoice",
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, err := readInvoice(cmd, invoicePath)
			if err != nil {
				return err
			}
			uri, err := payload.BuildSolanaPayURI(inv,
				payload.WithLabel(label),
				payload.WithMessage(message),
				payload.WithMemo(memo),
			)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), uri)
			return nil
		},
	}

	cmd.Flags().StringVar(&invoicePath, "invoice", "-", "Invoice JSON file, - for stdin")
	cmd.Flags().StringVar(&label, "label", "", "Label shown by the wallet")
	cmd.Flags().StringVar(&message, "message", "", "Message shown by the wallet")
	cmd.Flags().StringVar(&memo, "memo", "", "Memo recorded on chain")
	return cmd
}

func newEVMCmd() *cobra.Command {
	var invoicePath string

	cmd := &cobra.Command{
		Use:   "evm",
		Short: "Print the ERC-20 transfer call for an invoice",
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, err := readInvoice(cmd, invoicePath)
			if err != nil {
				return err
			}
			p, err := payload.BuildEVMTransferPayload(inv)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(p)
		},
	}

	cmd.Flags().StringVar(&invoicePath, "invoice", "-", "Invoice JSON file, - for stdin")
	return cmd
}

func newTokensCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "List supported stablecoins",
		RunE: func(cmd *cobra.Command, args []string) error {
			infos := tokens.All()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(infos)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTokens(infos))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
