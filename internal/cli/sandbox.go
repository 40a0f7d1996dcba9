package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/vitwit/invoicepay/logger"
	"github.com/vitwit/invoicepay/sandbox"
)

func newSandboxCmd(g *globalFlags) *cobra.Command {
	var (
		addr         string
		dataDir      string
		ttl          time.Duration
		confirmAfter int
		noReceipts   bool
	)

	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Run a local invoice service that confirms payments by itself",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := sandbox.OpenStore(dataDir)
			if err != nil {
				return err
			}
			defer store.Close()

			cfg := sandbox.DefaultConfig()
			cfg.TTL = ttl
			cfg.ConfirmAfter = confirmAfter
			cfg.IssueReceipts = !noReceipts

			level := g.logLevel
			if level == "" {
				level = "info"
			}
			log := logger.NewZapLogger(level)
			if z, ok := log.(*logger.ZapLogger); ok {
				defer func() { _ = z.Sync() }()
			}
			srv := sandbox.New(store, cfg, nil, log)

			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigs)
			go func() {
				<-sigs
				_ = srv.Shutdown()
			}()

			fmt.Fprintf(cmd.OutOrStdout(), "sandbox listening on %s\n", addr)
			return srv.Listen(addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	cmd.Flags().StringVar(&dataDir, "data", "", "Badger directory; empty keeps invoices in memory")
	cmd.Flags().DurationVar(&ttl, "ttl", 15*time.Minute, "Invoice lifetime")
	cmd.Flags().IntVar(&confirmAfter, "confirm-after", 2, "Status checks before a submitted payment confirms")
	cmd.Flags().BoolVar(&noReceipts, "no-receipts", false, "Confirm invoices without issuing a receipt PDF")
	return cmd
}
