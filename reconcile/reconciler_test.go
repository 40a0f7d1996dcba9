package reconcile_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/invoicepay/clock"
	"github.com/vitwit/invoicepay/reconcile"
	"github.com/vitwit/invoicepay/sandbox"
	"github.com/vitwit/invoicepay/types"
)

var evmHash = "0x" + strings.Repeat("ab", 32)

func newSandbox(t *testing.T, cfg sandbox.Config) (*reconcile.Reconciler, *clock.Fixed) {
	t.Helper()
	store, err := sandbox.OpenStore("")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clk := clock.NewFixed(time.Now().UTC())
	srv := httptest.NewServer(sandbox.New(store, cfg, clk, nil).Handler())
	t.Cleanup(srv.Close)

	backend, err := reconcile.NewHTTPBackend(srv.URL, srv.Client(), map[string]string{"X-Client": "test"})
	require.NoError(t, err)
	return reconcile.NewReconciler(backend, reconcile.WithTimeout(5*time.Second)), clk
}

func createBaseUSDC(t *testing.T, rec *reconcile.Reconciler) *types.Invoice {
	t.Helper()
	inv, err := rec.Create(context.Background(), &types.CreateInvoiceRequest{
		AmountFiat:    decimal.RequireFromString("10.5"),
		FiatCurrency:  types.CurrencyUSD,
		PaymentMethod: types.MethodBaseUSDC,
	})
	require.NoError(t, err)
	return inv
}

func TestReconciler_HappyPath(t *testing.T) {
	rec, _ := newSandbox(t, sandbox.DefaultConfig())
	ctx := context.Background()

	inv := createBaseUSDC(t, rec)
	assert.Equal(t, types.StatusPendingPayment, inv.PaymentStatus)
	require.NotNil(t, inv.ExpectedTokenAmount)
	assert.Equal(t, "10.5", inv.ExpectedTokenAmount.String())

	inv, err := rec.Verify(ctx, inv.ID, evmHash, "0x742d35Cc6634C0532925a3b844Bc454e4438f44e", types.NetworkBase)
	require.NoError(t, err)
	assert.Equal(t, types.StatusProcessing, inv.PaymentStatus)
	require.NotNil(t, inv.TransactionHash)
	assert.Equal(t, evmHash, *inv.TransactionHash)

	// retrying the same verification is harmless
	again, err := rec.Verify(ctx, inv.ID, evmHash, "", types.NetworkBase)
	require.NoError(t, err)
	assert.Equal(t, types.StatusProcessing, again.PaymentStatus)

	inv, err = rec.CheckStatus(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusProcessing, inv.PaymentStatus)

	inv, err = rec.CheckStatus(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusConfirmed, inv.PaymentStatus)
	assert.True(t, inv.HasReceipt())

	fetched, err := rec.Fetch(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, inv.PaymentStatus, fetched.PaymentStatus)

	_, err = rec.Cancel(ctx, inv.ID)
	assert.True(t, types.HasCode(err, types.ErrInvalidTransition))
}

func TestReconciler_VerifyErrorsAreUserFacing(t *testing.T) {
	rec, clk := newSandbox(t, sandbox.DefaultConfig())
	ctx := context.Background()
	inv := createBaseUSDC(t, rec)

	_, err := rec.Verify(ctx, inv.ID, "0x1234", "", types.NetworkBase)
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrVerificationFailed))
	assert.True(t, types.IsUserFacing(err))

	_, err = rec.Verify(ctx, inv.ID, evmHash, "not-an-address", types.NetworkBase)
	assert.True(t, types.HasCode(err, types.ErrVerificationFailed))

	// without a known network the backend decides
	_, err = rec.Verify(ctx, inv.ID, "0x1234", "", "")
	assert.True(t, types.HasCode(err, types.ErrVerificationFailed))

	_, err = rec.Verify(ctx, "missing", evmHash, "", types.NetworkBase)
	assert.True(t, types.HasCode(err, types.ErrVerificationFailed))
	assert.True(t, types.HasCode(err, types.ErrNotFound))

	clk.Advance(time.Hour)
	_, err = rec.Verify(ctx, inv.ID, evmHash, "", types.NetworkBase)
	assert.True(t, types.HasCode(err, types.ErrInvoiceExpired))
	assert.True(t, types.IsUserFacing(err))
}

func TestReconciler_Cancel(t *testing.T) {
	rec, _ := newSandbox(t, sandbox.DefaultConfig())
	inv := createBaseUSDC(t, rec)

	cancelled, err := rec.Cancel(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCancelled, cancelled.PaymentStatus)
}

func TestReconciler_CreateValidates(t *testing.T) {
	rec, _ := newSandbox(t, sandbox.DefaultConfig())
	_, err := rec.Create(context.Background(), &types.CreateInvoiceRequest{
		AmountFiat:    decimal.Zero,
		FiatCurrency:  types.CurrencyEUR,
		PaymentMethod: types.MethodPayPal,
	})
	assert.True(t, types.HasCode(err, types.ErrInvalidAmount))
}

type flakyBackend struct {
	reconcile.Backend
	err error
}

func (f flakyBackend) CheckStatus(context.Context, string) (*types.Invoice, error) {
	return nil, f.err
}

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
	rails  map[string]string
}

func (c *countingRecorder) IncCounter(name string, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[name+"/"+labels["outcome"]]++
	if c.rails != nil {
		c.rails[name] = labels["rail"]
	}
}

func (c *countingRecorder) ObserveLatency(string, time.Duration, map[string]string) {}

func TestReconciler_MetricsLabelledByPaymentMethod(t *testing.T) {
	store, err := sandbox.OpenStore("")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	srv := httptest.NewServer(sandbox.New(store, sandbox.DefaultConfig(), nil, nil).Handler())
	t.Cleanup(srv.Close)

	backend, err := reconcile.NewHTTPBackend(srv.URL, srv.Client(), nil)
	require.NoError(t, err)
	recorder := &countingRecorder{counts: map[string]int{}, rails: map[string]string{}}
	rec := reconcile.NewReconciler(backend, reconcile.WithMetrics(recorder))
	ctx := context.Background()

	inv := createBaseUSDC(t, rec)
	_, err = rec.Fetch(ctx, inv.ID)
	require.NoError(t, err)
	_, err = rec.Verify(ctx, inv.ID, evmHash, "", types.NetworkBase)
	require.NoError(t, err)
	_, err = rec.CheckStatus(ctx, inv.ID)
	require.NoError(t, err)
	_, err = rec.Cancel(ctx, inv.ID)
	require.Error(t, err)

	for _, op := range []string{"create", "fetch", "verify", "check_status"} {
		assert.Equal(t, "base_usdc", recorder.rails[op], op)
	}
	// A failed call has no response to take the method from.
	assert.Equal(t, "", recorder.rails["cancel"])
}

func TestReconciler_CheckStatusIsTransient(t *testing.T) {
	recorder := &countingRecorder{counts: map[string]int{}}
	rec := reconcile.NewReconciler(
		flakyBackend{err: errors.New("connection reset")},
		reconcile.WithMetrics(recorder),
	)

	_, err := rec.CheckStatus(context.Background(), "inv_1")
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrPollingTransient))
	assert.False(t, types.IsUserFacing(err))
	assert.Equal(t, 1, recorder.counts["check_status/error"])
}

func TestHTTPBackend_ErrorBodies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/invoices/plain":
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte("upstream down"))
		case "/invoices/gone":
			w.WriteHeader(http.StatusGone)
		default:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"code":"NOT_FOUND","message":"no such invoice"}`))
		}
	}))
	defer srv.Close()

	backend, err := reconcile.NewHTTPBackend(srv.URL+"/", nil, nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = backend.GetInvoice(ctx, "missing")
	var ie *types.InvoiceError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, types.ErrNotFound, ie.Code)
	assert.Equal(t, "no such invoice", ie.Message)
	assert.Equal(t, http.StatusNotFound, ie.StatusCode)

	_, err = backend.GetInvoice(ctx, "plain")
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, types.ErrNetworkError, ie.Code)
	assert.Equal(t, "upstream down", ie.Message)

	_, err = backend.GetInvoice(ctx, "gone")
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, types.ErrInvoiceExpired, ie.Code)
	assert.Equal(t, "Gone", ie.Message)
}

func TestNewHTTPBackend_InvalidURL(t *testing.T) {
	_, err := reconcile.NewHTTPBackend("not a url", nil, nil)
	assert.True(t, types.HasCode(err, types.ErrConfigError))
}
