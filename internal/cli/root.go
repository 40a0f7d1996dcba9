package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/vitwit/invoicepay"
	"github.com/vitwit/invoicepay/logger"
	"github.com/vitwit/invoicepay/types"
	"github.com/vitwit/invoicepay/utils"
)

var (
	version = invoicepay.Version
	commit  = "none"
)

// globalFlags are shared by every command that talks to a backend
type globalFlags struct {
	configPath string
	backendURL string
	logLevel   string
}

func (g *globalFlags) config() (types.Config, error) {
	var cfg types.Config
	if g.configPath != "" {
		loaded, err := utils.LoadConfig(g.configPath)
		if err != nil {
			return types.Config{}, err
		}
		cfg = *loaded
	}
	if g.backendURL != "" {
		cfg.BackendURL = g.backendURL
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	return cfg.WithDefaults(), nil
}

func (g *globalFlags) client() (*invoicepay.Client, error) {
	cfg, err := g.config()
	if err != nil {
		return nil, err
	}
	return invoicepay.New(cfg, invoicepay.WithLogger(g.logger(cfg)))
}

// logger writes to stderr only when a level was asked for
func (g *globalFlags) logger(cfg types.Config) logger.Logger {
	if g.logLevel == "" && g.configPath == "" {
		return logger.NoopLogger{}
	}
	return logger.NewZapLogger(cfg.LogLevel)
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:           "invoicepay",
		Short:         "Pay and track donation invoices",
		Long:          "invoicepay creates invoices on the invoice service, prints the wallet instruction for Solana, Base or PayPal, and follows an invoice until it settles.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&g.configPath, "config", "", "Config file (.json, .yaml)")
	cmd.PersistentFlags().StringVar(&g.backendURL, "backend", os.Getenv("INVOICEPAY_BACKEND_URL"), "Invoice service base URL")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newTokensCmd())
	cmd.AddCommand(newURICmd())
	cmd.AddCommand(newEVMCmd())
	cmd.AddCommand(newCreateCmd(g))
	cmd.AddCommand(newStatusCmd(g))
	cmd.AddCommand(newWatchCmd(g))
	cmd.AddCommand(newCancelCmd(g))
	cmd.AddCommand(newSandboxCmd(g))
	return cmd
}

// NewRootCmdForTest returns the root command for testing.
func NewRootCmdForTest() *cobra.Command {
	return newRootCmd()
}

func Execute() error {
	cmd := newRootCmd()
	err := cmd.Execute()
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render("error:"), err)
	}
	return err
}
