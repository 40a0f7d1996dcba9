// Package invoicepay is the client side of a donation checkout: it creates
// invoices on the invoice service, builds the wallet instruction for the
// chosen rail and follows the invoice until it settles.
package invoicepay

import (
	"context"
	"fmt"
	"net/http"

	"github.com/vitwit/invoicepay/chain"
	"github.com/vitwit/invoicepay/clock"
	"github.com/vitwit/invoicepay/logger"
	"github.com/vitwit/invoicepay/metrics"
	"github.com/vitwit/invoicepay/payload"
	"github.com/vitwit/invoicepay/reconcile"
	"github.com/vitwit/invoicepay/session"
	"github.com/vitwit/invoicepay/tokens"
	"github.com/vitwit/invoicepay/types"
)

// Client wires the backend, payload builder and chain observers together
type Client struct {
	config     types.Config
	reconciler *reconcile.Reconciler
	builder    *payload.Builder
	observers  map[types.Network]chain.Observer

	// set through options
	logger     logger.Logger
	metrics    metrics.Recorder
	httpClient *http.Client
	headers    map[string]string
	clock      clock.Clock
	registry   *tokens.Registry
}

// New validates cfg and connects the configured RPC observers
func New(cfg types.Config, opts ...Option) (*Client, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		config:    cfg,
		observers: make(map[types.Network]chain.Observer),
		clock:     clock.System{},
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = logger.NewZapLogger(cfg.LogLevel)
	}
	if c.metrics == nil {
		c.metrics = metrics.NoopRecorder{}
		if cfg.EnableMetrics {
			rec, err := metrics.NewPrometheusRecorder(nil)
			if err != nil {
				return nil, types.WrapError(types.ErrConfigError, "failed to register metrics", err)
			}
			c.metrics = rec
		}
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}

	backend, err := reconcile.NewHTTPBackend(cfg.BackendURL, c.httpClient, c.headers)
	if err != nil {
		return nil, err
	}
	c.reconciler = reconcile.NewReconciler(backend,
		reconcile.WithLogger(c.logger),
		reconcile.WithMetrics(c.metrics),
		reconcile.WithTimeout(cfg.RequestTimeout),
	)
	c.builder = payload.NewBuilder(c.registry)

	if cfg.SolanaRPCURL != "" {
		c.observers[types.NetworkSolana] = chain.NewSolanaObserver(cfg.SolanaRPCURL)
	}
	if cfg.EVMRPCURL != "" {
		obs, err := chain.NewEVMObserver(cfg.EVMRPCURL)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to create EVM observer: %w", err)
		}
		c.observers[types.NetworkBase] = obs
	}

	return c, nil
}

// CreateInvoice starts a new donation on the backend
func (c *Client) CreateInvoice(ctx context.Context, req *types.CreateInvoiceRequest) (*types.Invoice, error) {
	return c.reconciler.Create(ctx, req)
}

// GetInvoice fetches the current snapshot of an invoice
func (c *Client) GetInvoice(ctx context.Context, id string) (*types.Invoice, error) {
	return c.reconciler.Fetch(ctx, id)
}

// BuildPayment builds the wallet instruction for inv without any state checks
func (c *Client) BuildPayment(inv *types.Invoice, opts ...payload.SolanaPayOption) (payload.Instruction, error) {
	return c.builder.Build(inv, opts...)
}

// OpenSession returns a session that follows inv. The caller owns it and
// must Close it.
func (c *Client) OpenSession(inv *types.Invoice) *session.Session {
	opts := []session.Option{
		session.WithPollInterval(c.config.PollInterval),
		session.WithClock(c.clock),
		session.WithLogger(c.logger),
		session.WithBuilder(c.builder),
	}
	if obs, ok := c.observerFor(inv); ok {
		opts = append(opts, session.WithObserver(obs))
	}
	return session.Open(c.reconciler, inv, opts...)
}

func (c *Client) observerFor(inv *types.Invoice) (chain.Observer, bool) {
	rail, err := inv.PaymentMethod.Rail()
	if err != nil {
		return nil, false
	}
	network, ok := types.RailNetwork(rail)
	if !ok {
		return nil, false
	}
	obs, ok := c.observers[network]
	return obs, ok
}

// Reconciler exposes the underlying reconciliation client
func (c *Client) Reconciler() *reconcile.Reconciler {
	return c.reconciler
}

// Config returns the effective configuration
func (c *Client) Config() types.Config {
	return c.config
}

// Close closes all observer connections
func (c *Client) Close() {
	for _, obs := range c.observers {
		obs.Close()
	}
}

// Version information
const Version = "1.0.0"

// GetVersion returns version information
func GetVersion() map[string]interface{} {
	methods := make([]string, 0, 5)
	for _, m := range []types.PaymentMethod{
		types.MethodPayPal,
		types.MethodSolanaUSDC,
		types.MethodSolanaEURC,
		types.MethodBaseUSDC,
		types.MethodBaseEURC,
	} {
		methods = append(methods, string(m))
	}

	return map[string]interface{}{
		"library_version":    Version,
		"supported_networks": []string{"solana", "base"},
		"payment_methods":    methods,
		"supported_standards": []string{
			string(tokens.StandardSPL), string(tokens.StandardERC20),
		},
	}
}
