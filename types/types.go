package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Network represents the settlement network an invoice was paid on
type Network string

const (
	NetworkSolana Network = "solana"
	NetworkBase   Network = "base"
)

func (n Network) String() string {
	return string(n)
}

// Family returns the chain family the network belongs to
func (n Network) Family() (ChainFamily, bool) {
	switch n {
	case NetworkSolana:
		return ChainSolana, true
	case NetworkBase:
		return ChainEVM, true
	default:
		return "", false
	}
}

// FiatCurrency is the currency an invoice is priced in
type FiatCurrency string

const (
	CurrencyUSD FiatCurrency = "USD"
	CurrencyEUR FiatCurrency = "EUR"
)

// PaymentMethod selects both the settlement network family and the token
type PaymentMethod string

const (
	MethodPayPal     PaymentMethod = "paypal"
	MethodSolanaUSDC PaymentMethod = "solana_usdc"
	MethodSolanaEURC PaymentMethod = "solana_eurc"
	MethodBaseUSDC   PaymentMethod = "base_usdc"
	MethodBaseEURC   PaymentMethod = "base_eurc"
)

// PaymentStatus is the lifecycle state of an invoice as reported by the backend
type PaymentStatus string

const (
	StatusPendingPayment PaymentStatus = "PENDING_PAYMENT"
	StatusProcessing     PaymentStatus = "PROCESSING"
	StatusConfirmed      PaymentStatus = "CONFIRMED"
	StatusFailed         PaymentStatus = "FAILED"
	StatusExpired        PaymentStatus = "EXPIRED"
	StatusCancelled      PaymentStatus = "CANCELLED"
)

// AllStatuses lists every status in lifecycle order
var AllStatuses = []PaymentStatus{
	StatusPendingPayment,
	StatusProcessing,
	StatusConfirmed,
	StatusFailed,
	StatusExpired,
	StatusCancelled,
}

func (s PaymentStatus) String() string {
	return string(s)
}

// Valid reports whether s is one of the six known statuses
func (s PaymentStatus) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Invoice is an immutable snapshot of a backend-owned invoice record.
// A newer snapshot always replaces the whole value.
type Invoice struct {
	ID              string  `json:"id" validate:"required"`
	InvoiceNumber   *string `json:"invoiceNumber"`
	MerchantAddress string  `json:"merchantAddress" validate:"required"`

	// Fiat price; authoritative for display and equality checks.
	AmountFiat   decimal.Decimal `json:"amountFiat"`
	FiatCurrency FiatCurrency    `json:"fiatCurrency" validate:"required,oneof=USD EUR"`

	// Crypto-denominated amount, set only for crypto rails.
	ExpectedTokenAmount *decimal.Decimal `json:"expectedTokenAmount"`
	TokenSymbol         *string          `json:"tokenSymbol"`

	// PayPal checkout fields, set only for the paypal rail.
	PayPalOrderID     *string `json:"paypalOrderId,omitempty"`
	PayPalCheckoutURL *string `json:"paypalCheckoutUrl,omitempty"`

	PaymentMethod PaymentMethod `json:"paymentMethod" validate:"required,oneof=paypal solana_usdc solana_eurc base_usdc base_eurc"`
	PaymentStatus PaymentStatus `json:"paymentStatus" validate:"required,oneof=PENDING_PAYMENT PROCESSING CONFIRMED FAILED EXPIRED CANCELLED"`
	ExpiresAt     time.Time     `json:"expiresAt" validate:"required"`

	TransactionHash *string  `json:"transactionHash"`
	Network         *Network `json:"network" validate:"omitempty,oneof=solana base"`

	IssuedPDFURL *string `json:"issuedPdfUrl" validate:"omitempty,url"`

	// Pre-rendered by the backend; used verbatim when present.
	SolanaPayURI *string `json:"solanaPayUri"`
}

// Symbol returns the token symbol or an empty string
func (inv *Invoice) Symbol() string {
	if inv.TokenSymbol == nil {
		return ""
	}
	return strings.TrimSpace(*inv.TokenSymbol)
}

// HasReceipt reports whether a receipt PDF has been issued
func (inv *Invoice) HasReceipt() bool {
	return inv.IssuedPDFURL != nil && *inv.IssuedPDFURL != ""
}

// Validate checks the cross-field invariants of an invoice snapshot
func (inv *Invoice) Validate() error {
	if err := validate.Struct(inv); err != nil {
		return NewError(ErrInvalidInvoice, fmt.Sprintf("invoice %q: %v", inv.ID, err))
	}

	if inv.AmountFiat.IsNegative() {
		return NewError(ErrInvalidInvoice, fmt.Sprintf("invoice %q: amountFiat cannot be negative", inv.ID))
	}

	rail, err := inv.PaymentMethod.Rail()
	if err != nil {
		return err
	}

	hasCrypto := inv.ExpectedTokenAmount != nil || inv.TokenSymbol != nil
	hasPayPal := inv.PayPalOrderID != nil || inv.PayPalCheckoutURL != nil

	switch rail.(type) {
	case PayPalRail:
		if hasCrypto {
			return NewError(ErrInvalidInvoice, fmt.Sprintf("invoice %q: paypal invoice carries crypto amount fields", inv.ID))
		}
		if inv.TransactionHash != nil {
			return NewError(ErrInvalidInvoice, fmt.Sprintf("invoice %q: transactionHash set on a paypal invoice", inv.ID))
		}
		if inv.PayPalCheckoutURL == nil || *inv.PayPalCheckoutURL == "" {
			return NewError(ErrInvalidInvoice, fmt.Sprintf("invoice %q: paypal invoice has no paypalCheckoutUrl", inv.ID))
		}
	case SolanaRail, EVMRail:
		if hasPayPal {
			return NewError(ErrInvalidInvoice, fmt.Sprintf("invoice %q: crypto invoice carries paypal checkout fields", inv.ID))
		}
		if inv.ExpectedTokenAmount == nil || inv.Symbol() == "" {
			return NewError(ErrInvalidInvoice, fmt.Sprintf("invoice %q: crypto invoice needs expectedTokenAmount and tokenSymbol", inv.ID))
		}
	}

	if inv.HasReceipt() && inv.PaymentStatus != StatusConfirmed {
		return NewError(ErrInvalidInvoice, fmt.Sprintf("invoice %q: issuedPdfUrl present in status %s", inv.ID, inv.PaymentStatus))
	}

	return nil
}

// CreateInvoiceRequest starts a new donation on the backend
type CreateInvoiceRequest struct {
	AmountFiat    decimal.Decimal `json:"amountFiat"`
	FiatCurrency  FiatCurrency    `json:"fiatCurrency" validate:"required,oneof=USD EUR"`
	PaymentMethod PaymentMethod   `json:"paymentMethod" validate:"required,oneof=paypal solana_usdc solana_eurc base_usdc base_eurc"`
	Recipient     string          `json:"recipient,omitempty"`
	Description   string          `json:"description,omitempty"`
}

// Validate checks that the request can be sent
func (r *CreateInvoiceRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return NewError(ErrInvalidInvoice, fmt.Sprintf("create invoice: %v", err))
	}
	if !r.AmountFiat.IsPositive() {
		return NewError(ErrInvalidAmount, "create invoice: amountFiat must be greater than 0")
	}
	return nil
}

// VerifyRequest is the body of POST /invoices/{id}/verify
type VerifyRequest struct {
	TransactionHash string `json:"transactionHash" validate:"required"`
	WalletAddress   string `json:"walletAddress,omitempty"`
}

// Config contains global configuration for the invoicepay library
type Config struct {
	BackendURL        string        `json:"backendUrl" yaml:"backendUrl" validate:"required,url"`
	RequestTimeout    time.Duration `json:"requestTimeout,omitempty" yaml:"requestTimeout"`
	PollInterval      time.Duration `json:"pollInterval,omitempty" yaml:"pollInterval"`
	CountdownInterval time.Duration `json:"countdownInterval,omitempty" yaml:"countdownInterval"`
	LogLevel          string        `json:"logLevel,omitempty" yaml:"logLevel" validate:"omitempty,oneof=debug info warn error"`
	EnableMetrics     bool          `json:"enableMetrics,omitempty" yaml:"enableMetrics"`
	SolanaRPCURL      string        `json:"solanaRpcUrl,omitempty" yaml:"solanaRpcUrl" validate:"omitempty,url"`
	EVMRPCURL         string        `json:"evmRpcUrl,omitempty" yaml:"evmRpcUrl" validate:"omitempty,url"`
}

const (
	DefaultRequestTimeout    = 30 * time.Second
	DefaultPollInterval      = 5 * time.Second
	DefaultCountdownInterval = time.Second
)

// WithDefaults returns a copy of c with zero values replaced by defaults
func (c Config) WithDefaults() Config {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.CountdownInterval <= 0 {
		c.CountdownInterval = DefaultCountdownInterval
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	return c
}

// Validate checks the configuration struct tags
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return NewError(ErrConfigError, fmt.Sprintf("validation failed: %v", err))
	}
	return nil
}
