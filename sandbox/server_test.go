package sandbox_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/invoicepay/clock"
	"github.com/vitwit/invoicepay/sandbox"
	"github.com/vitwit/invoicepay/types"
)

var evmHash = "0x" + strings.Repeat("1f", 32)

type harness struct {
	t     *testing.T
	srv   *httptest.Server
	clock *clock.Fixed
}

func newHarness(t *testing.T, cfg sandbox.Config) *harness {
	t.Helper()
	store, err := sandbox.OpenStore("")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clk := clock.NewFixed(time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC))
	srv := httptest.NewServer(sandbox.New(store, cfg, clk, nil).Handler())
	t.Cleanup(srv.Close)
	return &harness{t: t, srv: srv, clock: clk}
}

func (h *harness) post(path string, body any) (*http.Response, map[string]any) {
	h.t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(h.t, err)
	resp, err := http.Post(h.srv.URL+path, "application/json", bytes.NewReader(raw))
	require.NoError(h.t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	require.NoError(h.t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func (h *harness) create(method string) map[string]any {
	resp, inv := h.post("/invoices", map[string]any{
		"amountFiat":    "25.00",
		"fiatCurrency":  "USD",
		"paymentMethod": method,
	})
	require.Equal(h.t, http.StatusCreated, resp.StatusCode, inv)
	return inv
}

func TestCreateInvoice(t *testing.T) {
	h := newHarness(t, sandbox.DefaultConfig())

	inv := h.create("base_usdc")
	assert.NotEmpty(t, inv["id"])
	assert.Equal(t, "PENDING_PAYMENT", inv["paymentStatus"])
	assert.Equal(t, "25", inv["expectedTokenAmount"])
	assert.Equal(t, "USDC", inv["tokenSymbol"])
	assert.Equal(t, "2026-10-14T12:15:00Z", inv["expiresAt"])
	assert.Nil(t, inv["invoiceNumber"])

	pp := h.create("paypal")
	assert.Nil(t, pp["expectedTokenAmount"])
	assert.Contains(t, pp["paypalCheckoutUrl"], "https://www.sandbox.paypal.com/checkoutnow?token=")
}

func TestCreateInvoice_Rejects(t *testing.T) {
	h := newHarness(t, sandbox.DefaultConfig())

	resp, body := h.post("/invoices", map[string]any{"amountFiat": "5", "fiatCurrency": "USD", "paymentMethod": "venmo"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, types.ErrInvalidInvoice, body["code"])

	resp, body = h.post("/invoices", map[string]any{"amountFiat": "0", "fiatCurrency": "USD", "paymentMethod": "base_usdc"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, types.ErrInvalidAmount, body["code"])
}

func TestVerifyAndConfirm(t *testing.T) {
	h := newHarness(t, sandbox.DefaultConfig())
	id := h.create("base_usdc")["id"].(string)

	resp, inv := h.post("/invoices/"+id+"/verify", map[string]any{"transactionHash": evmHash})
	require.Equal(t, http.StatusOK, resp.StatusCode, inv)
	assert.Equal(t, "PROCESSING", inv["paymentStatus"])
	assert.Equal(t, "base", inv["network"])

	// same hash again is a no-op
	resp, inv = h.post("/invoices/"+id+"/verify", map[string]any{"transactionHash": evmHash})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "PROCESSING", inv["paymentStatus"])

	// a different hash is rejected
	resp, inv = h.post("/invoices/"+id+"/verify", map[string]any{"transactionHash": "0x" + strings.Repeat("2e", 32)})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, types.ErrInvalidTransition, inv["code"])

	_, inv = h.post("/invoices/"+id+"/check-status", nil)
	assert.Equal(t, "PROCESSING", inv["paymentStatus"])

	_, inv = h.post("/invoices/"+id+"/check-status", nil)
	assert.Equal(t, "CONFIRMED", inv["paymentStatus"])
	assert.Equal(t, "INV-000001", inv["invoiceNumber"])
	assert.Equal(t, "https://receipts.sandbox.invalid/"+id+".pdf", inv["issuedPdfUrl"])

	resp, inv = h.post("/invoices/"+id+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, types.ErrInvalidTransition, inv["code"])
}

func TestVerify_HashBelongsToAnotherInvoice(t *testing.T) {
	h := newHarness(t, sandbox.DefaultConfig())
	first := h.create("base_usdc")["id"].(string)
	second := h.create("base_usdc")["id"].(string)

	resp, _ := h.post("/invoices/"+first+"/verify", map[string]any{"transactionHash": evmHash})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := h.post("/invoices/"+second+"/verify", map[string]any{"transactionHash": evmHash})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, types.ErrVerificationFailed, body["code"])
}

func TestVerify_Expired(t *testing.T) {
	h := newHarness(t, sandbox.DefaultConfig())
	id := h.create("base_eurc")["id"].(string)

	h.clock.Advance(16 * time.Minute)

	resp, body := h.post("/invoices/"+id+"/verify", map[string]any{"transactionHash": evmHash})
	assert.Equal(t, http.StatusGone, resp.StatusCode)
	assert.Equal(t, types.ErrInvoiceExpired, body["code"])

	_, inv := h.post("/invoices/"+id+"/check-status", nil)
	assert.Equal(t, "EXPIRED", inv["paymentStatus"])
}

func TestVerify_PayPalRejected(t *testing.T) {
	h := newHarness(t, sandbox.DefaultConfig())
	id := h.create("paypal")["id"].(string)

	resp, body := h.post("/invoices/"+id+"/verify", map[string]any{"transactionHash": evmHash})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, types.ErrVerificationFailed, body["code"])
}

func TestCheckStatus_FailedTransaction(t *testing.T) {
	cfg := sandbox.DefaultConfig()
	cfg.FailTx = func(hash string) bool { return hash == evmHash }
	h := newHarness(t, cfg)
	id := h.create("base_usdc")["id"].(string)

	h.post("/invoices/"+id+"/verify", map[string]any{"transactionHash": evmHash})
	_, inv := h.post("/invoices/"+id+"/check-status", nil)
	assert.Equal(t, "FAILED", inv["paymentStatus"])
	assert.Nil(t, inv["issuedPdfUrl"])
}

func TestCancel(t *testing.T) {
	h := newHarness(t, sandbox.DefaultConfig())
	id := h.create("solana_usdc")["id"].(string)

	resp, inv := h.post("/invoices/"+id+"/cancel", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "CANCELLED", inv["paymentStatus"])
}

func TestGetInvoice_NotFound(t *testing.T) {
	h := newHarness(t, sandbox.DefaultConfig())

	resp, err := http.Get(h.srv.URL + "/invoices/missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
