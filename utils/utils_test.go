package utils_test

import (
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/invoicepay/types"
	"github.com/vitwit/invoicepay/utils"
)

func TestToBaseUnits(t *testing.T) {
	tests := []struct {
		amount string
		expect int64
	}{
		{"10.5", 10_500_000},
		{"0", 0},
		{"1", 1_000_000},
		{"0.000001", 1},
		{"123.456789", 123_456_789},
		{"100.000000", 100_000_000},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			got, err := utils.ToBaseUnits(decimal.RequireFromString(tt.amount), 6)
			require.NoError(t, err)
			assert.Equal(t, big.NewInt(tt.expect), got)
		})
	}
}

func TestToBaseUnits_RejectsExcessPrecision(t *testing.T) {
	_, err := utils.ToBaseUnits(decimal.RequireFromString("0.0000001"), 6)
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrInvalidAmount))

	_, err = utils.ToBaseUnits(decimal.RequireFromString("-1"), 6)
	assert.True(t, types.HasCode(err, types.ErrInvalidAmount))
}

func TestFromBaseUnits(t *testing.T) {
	assert.Equal(t, "10.5", utils.FromBaseUnits(big.NewInt(10_500_000), 6).String())
}

func TestValidateTransactionHash(t *testing.T) {
	evmHash := "0x" + strings.Repeat("ab", 32)
	assert.NoError(t, utils.ValidateTransactionHash(evmHash, types.NetworkBase))
	assert.Error(t, utils.ValidateTransactionHash("0x1234", types.NetworkBase))
	assert.Error(t, utils.ValidateTransactionHash("", types.NetworkBase))

	var sig solana.Signature
	for i := range sig {
		sig[i] = byte(i + 1)
	}
	assert.NoError(t, utils.ValidateTransactionHash(sig.String(), types.NetworkSolana))
	assert.Error(t, utils.ValidateTransactionHash(evmHash, types.NetworkSolana))

	assert.Error(t, utils.ValidateTransactionHash(evmHash, "polygon"))
}

func TestValidateAddressForNetwork(t *testing.T) {
	assert.NoError(t, utils.ValidateAddressForNetwork("0x742d35Cc6634C0532925a3b844Bc454e4438f44e", types.NetworkBase))
	assert.Error(t, utils.ValidateAddressForNetwork("0x742d", types.NetworkBase))

	assert.NoError(t, utils.ValidateAddressForNetwork(solana.SystemProgramID.String(), types.NetworkSolana))
	assert.Error(t, utils.ValidateAddressForNetwork("Ejxxx", types.NetworkSolana))
}

func TestParseConfig(t *testing.T) {
	cfg, err := utils.ParseConfig([]byte(`{"backendUrl":"https://api.example.org","pollInterval":"3s","logLevel":"debug"}`))
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.org", cfg.BackendURL)
	assert.Equal(t, 3*time.Second, cfg.PollInterval)
	assert.Equal(t, types.DefaultRequestTimeout, cfg.RequestTimeout)
	assert.Equal(t, types.DefaultCountdownInterval, cfg.CountdownInterval)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestParseConfig_Invalid(t *testing.T) {
	tests := map[string]string{
		"malformed":    `{"backendUrl":`,
		"missing url":  `{"pollInterval":"3s"}`,
		"bad duration": `{"backendUrl":"https://api.example.org","pollInterval":"soon"}`,
		"bad level":    `{"backendUrl":"https://api.example.org","logLevel":"loud"}`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := utils.ParseConfig([]byte(raw))
			require.Error(t, err)
			assert.True(t, types.HasCode(err, types.ErrConfigError))
		})
	}
}

func TestLoadConfig_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invoicepay.yaml")
	data := "backendUrl: http://localhost:8080\nrequestTimeout: 10s\nenableMetrics: true\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := utils.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.BackendURL)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.True(t, cfg.EnableMetrics)
}

func TestParseInvoice(t *testing.T) {
	raw := `{
		"id": "inv_1",
		"invoiceNumber": null,
		"merchantAddress": "0x742d35Cc6634C0532925a3b844Bc454e4438f44e",
		"amountFiat": 100.5,
		"fiatCurrency": "USD",
		"expectedTokenAmount": "100.5",
		"tokenSymbol": "USDC",
		"paymentMethod": "base_usdc",
		"paymentStatus": "PENDING_PAYMENT",
		"expiresAt": "2026-10-14T12:00:00Z",
		"transactionHash": null,
		"network": null,
		"issuedPdfUrl": null,
		"solanaPayUri": null
	}`

	inv, err := utils.ParseInvoice([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "inv_1", inv.ID)
	assert.True(t, inv.AmountFiat.Equal(decimal.RequireFromString("100.5")))
	require.NotNil(t, inv.ExpectedTokenAmount)
	assert.Equal(t, "100.5", inv.ExpectedTokenAmount.String())
	assert.Equal(t, types.MethodBaseUSDC, inv.PaymentMethod)
	assert.Nil(t, inv.Network)
}

func TestParseInvoice_RejectsBrokenInvariants(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{
			name: "receipt before confirmation",
			raw: `{
				"id": "inv_2",
				"merchantAddress": "paypal",
				"amountFiat": 10,
				"fiatCurrency": "EUR",
				"paypalCheckoutUrl": "https://www.sandbox.paypal.com/checkoutnow?token=ABC",
				"paymentMethod": "paypal",
				"paymentStatus": "PROCESSING",
				"expiresAt": "2026-10-14T12:00:00Z",
				"issuedPdfUrl": "https://example.org/r.pdf"
			}`,
		},
		{
			name: "crypto invoice without token fields",
			raw: `{
				"id": "inv_3",
				"merchantAddress": "0x742d35Cc6634C0532925a3b844Bc454e4438f44e",
				"amountFiat": 10,
				"fiatCurrency": "USD",
				"paymentMethod": "base_usdc",
				"paymentStatus": "PENDING_PAYMENT",
				"expiresAt": "2026-10-14T12:00:00Z"
			}`,
		},
		{
			name: "crypto invoice without symbol",
			raw: `{
				"id": "inv_4",
				"merchantAddress": "0x742d35Cc6634C0532925a3b844Bc454e4438f44e",
				"amountFiat": 10,
				"fiatCurrency": "USD",
				"expectedTokenAmount": "10",
				"paymentMethod": "base_usdc",
				"paymentStatus": "PENDING_PAYMENT",
				"expiresAt": "2026-10-14T12:00:00Z"
			}`,
		},
		{
			name: "paypal invoice without checkout url",
			raw: `{
				"id": "inv_5",
				"merchantAddress": "paypal",
				"amountFiat": 10,
				"fiatCurrency": "EUR",
				"paymentMethod": "paypal",
				"paymentStatus": "PENDING_PAYMENT",
				"expiresAt": "2026-10-14T12:00:00Z"
			}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := utils.ParseInvoice([]byte(tt.raw))
			require.Error(t, err)
			assert.True(t, types.HasCode(err, types.ErrInvalidInvoice))
		})
	}
}

func TestValidateAmount(t *testing.T) {
	got, err := utils.ValidateAmount("12.50")
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.RequireFromString("12.5")))

	for _, bad := range []string{"", "lots", "-1"} {
		_, err := utils.ValidateAmount(bad)
		assert.True(t, types.HasCode(err, types.ErrInvalidAmount), bad)
	}
}

func TestParseFlexibleTime(t *testing.T) {
	for _, s := range []string{"2026-10-14T12:00:00Z", "2026-10-14T12:00:00.123Z", "2026-10-14T14:00:00+02:00", "2026-10-14 12:00:00"} {
		got, err := utils.ParseFlexibleTime(s)
		require.NoError(t, err, s)
		assert.Equal(t, 2026, got.Year())
	}

	_, err := utils.ParseFlexibleTime("yesterday")
	assert.Error(t, err)
}
