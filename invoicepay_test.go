package invoicepay

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/invoicepay/logger"
	"github.com/vitwit/invoicepay/payload"
	"github.com/vitwit/invoicepay/sandbox"
	"github.com/vitwit/invoicepay/types"
)

func newSandboxURL(t *testing.T) string {
	t.Helper()
	store, err := sandbox.OpenStore("")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	srv := httptest.NewServer(sandbox.New(store, sandbox.DefaultConfig(), nil, nil).Handler())
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(types.Config{})
	assert.True(t, types.HasCode(err, types.ErrConfigError))

	_, err = New(types.Config{BackendURL: "https://api.example.com", LogLevel: "loud"})
	assert.True(t, types.HasCode(err, types.ErrConfigError))
}

func TestNew_Defaults(t *testing.T) {
	c, err := New(types.Config{BackendURL: "https://api.example.com"}, WithLogger(logger.NoopLogger{}))
	require.NoError(t, err)
	defer c.Close()

	cfg := c.Config()
	assert.Equal(t, types.DefaultPollInterval, cfg.PollInterval)
	assert.Equal(t, types.DefaultRequestTimeout, cfg.RequestTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.NotNil(t, c.Reconciler())
}

func TestNew_ObserversFromConfig(t *testing.T) {
	c, err := New(types.Config{
		BackendURL:   "https://api.example.com",
		SolanaRPCURL: "https://api.mainnet-beta.solana.com",
		EVMRPCURL:    "https://mainnet.base.org",
	}, WithLogger(logger.NoopLogger{}))
	require.NoError(t, err)
	defer c.Close()

	_, ok := c.observerFor(&types.Invoice{PaymentMethod: types.MethodBaseEURC})
	assert.True(t, ok)
	_, ok = c.observerFor(&types.Invoice{PaymentMethod: types.MethodSolanaUSDC})
	assert.True(t, ok)
	_, ok = c.observerFor(&types.Invoice{PaymentMethod: types.MethodPayPal})
	assert.False(t, ok)
}

func TestClient_EndToEnd(t *testing.T) {
	c, err := New(types.Config{
		BackendURL:   newSandboxURL(t),
		PollInterval: 2 * time.Millisecond,
	}, WithLogger(logger.NoopLogger{}), WithTimeout(5*time.Second))
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	inv, err := c.CreateInvoice(ctx, &types.CreateInvoiceRequest{
		AmountFiat:    decimal.RequireFromString("20"),
		FiatCurrency:  types.CurrencyEUR,
		PaymentMethod: types.MethodSolanaEURC,
	})
	require.NoError(t, err)

	instr, err := c.BuildPayment(inv, payload.WithLabel("Donation"))
	require.NoError(t, err)
	req, ok := instr.(payload.SolanaPayRequest)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(req.URI, "solana:"+inv.MerchantAddress+"?amount=20&spl-token="))
	assert.Contains(t, req.URI, "&label=Donation")

	fetched, err := c.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, inv.ID, fetched.ID)

	s := c.OpenSession(inv)
	defer s.Close()

	sig := solana.SignatureFromBytes(bytes.Repeat([]byte{9}, 64)).String()
	held, err := s.Submit(ctx, sig, "")
	require.NoError(t, err)
	assert.Equal(t, types.StatusProcessing, held.PaymentStatus)

	s.Start(ctx)
	timeout := time.After(5 * time.Second)
	for open := true; open; {
		select {
		case _, open = <-s.Updates():
		case <-timeout:
			t.Fatal("session did not settle")
		}
	}
	assert.Equal(t, types.StatusConfirmed, s.Current().PaymentStatus)
}

func TestGetVersion(t *testing.T) {
	v := GetVersion()
	assert.Equal(t, Version, v["library_version"])
	assert.Contains(t, v["payment_methods"], "base_eurc")
}
