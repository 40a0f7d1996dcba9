// Package reconcile drives the verification calls that move an invoice
// towards a terminal state and maps backend failures onto the error policy:
// verification failures reach the user, polling failures never do.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/vitwit/invoicepay/logger"
	"github.com/vitwit/invoicepay/metrics"
	"github.com/vitwit/invoicepay/types"
	"github.com/vitwit/invoicepay/utils"
)

// Reconciler wraps a Backend with timeouts, logging and metrics
type Reconciler struct {
	backend Backend
	timeout time.Duration
	logger  logger.Logger
	metrics metrics.Recorder
}

type Option func(*Reconciler)

func WithLogger(l logger.Logger) Option {
	return func(r *Reconciler) {
		r.logger = logger.OrNoop(l)
	}
}

func WithMetrics(m metrics.Recorder) Option {
	return func(r *Reconciler) {
		r.metrics = metrics.OrNoop(m)
	}
}

func WithTimeout(t time.Duration) Option {
	return func(r *Reconciler) {
		if t > 0 {
			r.timeout = t
		}
	}
}

// NewReconciler creates a reconciler over backend
func NewReconciler(backend Backend, opts ...Option) *Reconciler {
	r := &Reconciler{
		backend: backend,
		timeout: types.DefaultRequestTimeout,
		logger:  logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create starts a new invoice
func (r *Reconciler) Create(ctx context.Context, req *types.CreateInvoiceRequest) (*types.Invoice, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	inv, err := r.call(ctx, "create", req.PaymentMethod, func(ctx context.Context) (*types.Invoice, error) {
		return r.backend.CreateInvoice(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("invoice created", map[string]any{
		"invoice_id": inv.ID,
		"method":     inv.PaymentMethod,
		"expires_at": inv.ExpiresAt,
	})
	return inv, nil
}

// Fetch returns the current snapshot of an invoice
func (r *Reconciler) Fetch(ctx context.Context, id string) (*types.Invoice, error) {
	return r.call(ctx, "fetch", "", func(ctx context.Context) (*types.Invoice, error) {
		return r.backend.GetInvoice(ctx, id)
	})
}

// Verify reports a broadcast transaction to the backend. Calling it again
// with the same hash is safe: the backend deduplicates by (id, hash).
// network, when known, is used to check the hash format before sending.
func (r *Reconciler) Verify(ctx context.Context, id, txHash, walletAddress string, network types.Network) (*types.Invoice, error) {
	if network != "" {
		if err := utils.ValidateTransactionHash(txHash, network); err != nil {
			return nil, types.WrapError(types.ErrVerificationFailed, "invalid transaction hash", err)
		}
		if walletAddress != "" {
			if err := utils.ValidateAddressForNetwork(walletAddress, network); err != nil {
				return nil, types.WrapError(types.ErrVerificationFailed, "invalid wallet address", err)
			}
		}
	} else if txHash == "" {
		return nil, types.NewError(types.ErrVerificationFailed, "transaction hash cannot be empty")
	}

	req := &types.VerifyRequest{TransactionHash: txHash, WalletAddress: walletAddress}

	inv, err := r.call(ctx, "verify", "", func(ctx context.Context) (*types.Invoice, error) {
		return r.backend.VerifyPayment(ctx, id, req)
	})
	if err != nil {
		r.logger.Warn("verification rejected", map[string]any{
			"invoice_id": id,
			"tx_hash":    txHash,
			"error":      err,
		})
		if types.HasCode(err, types.ErrInvoiceExpired) {
			return nil, err
		}
		return nil, types.WrapError(types.ErrVerificationFailed, fmt.Sprintf("verify invoice %s", id), err)
	}

	r.logger.Info("transaction submitted", map[string]any{
		"invoice_id": id,
		"tx_hash":    txHash,
		"status":     inv.PaymentStatus,
	})
	return inv, nil
}

// CheckStatus forces a fresh blockchain read. Failures are reported as
// PollingTransientError and are meant to be retried on the next tick.
func (r *Reconciler) CheckStatus(ctx context.Context, id string) (*types.Invoice, error) {
	inv, err := r.call(ctx, "check_status", "", func(ctx context.Context) (*types.Invoice, error) {
		return r.backend.CheckStatus(ctx, id)
	})
	if err != nil {
		r.logger.Debug("status check failed", map[string]any{
			"invoice_id": id,
			"error":      err,
		})
		return nil, types.WrapError(types.ErrPollingTransient, fmt.Sprintf("check status of invoice %s", id), err)
	}
	return inv, nil
}

// Cancel withdraws a non-terminal invoice
func (r *Reconciler) Cancel(ctx context.Context, id string) (*types.Invoice, error) {
	inv, err := r.call(ctx, "cancel", "", func(ctx context.Context) (*types.Invoice, error) {
		return r.backend.CancelInvoice(ctx, id)
	})
	if err != nil {
		code := types.CodeOf(err)
		if code == "" {
			code = types.ErrNetworkError
		}
		return nil, types.WrapError(code, fmt.Sprintf("cancel invoice %s", id), err)
	}
	if inv.PaymentStatus != types.StatusCancelled {
		return nil, types.NewError(
			types.ErrInvalidTransition,
			fmt.Sprintf("invoice %s is %s after cancel", id, inv.PaymentStatus),
		)
	}

	r.logger.Info("invoice cancelled", map[string]any{
		"invoice_id": id,
		"status":     inv.PaymentStatus,
	})
	return inv, nil
}

// call runs fn under the request timeout and records it. The rail label is
// the invoice's payment method, taken from the response when there is one.
func (r *Reconciler) call(
	ctx context.Context,
	op string,
	method types.PaymentMethod,
	fn func(context.Context) (*types.Invoice, error),
) (*types.Invoice, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	inv, err := fn(callCtx)
	elapsed := time.Since(start)

	if inv != nil {
		method = inv.PaymentMethod
	}
	rail := string(method)
	r.metrics.ObserveLatency(op, elapsed, map[string]string{"rail": rail})

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.metrics.IncCounter(op, map[string]string{"rail": rail, "outcome": outcome})
	return inv, err
}
