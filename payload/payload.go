// Package payload turns an invoice into the instruction a wallet or checkout
// page needs to move funds. Builders are pure: they never broadcast.
package payload

import (
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"
	"github.com/vitwit/invoicepay/tokens"
	"github.com/vitwit/invoicepay/types"
)

// Instruction is the rail-specific payment instruction for an invoice.
// Implemented by SolanaPayRequest, EVMTransferRequest and PayPalRedirect.
type Instruction interface {
	isInstruction()
	Rail() types.Rail
}

// SolanaPayRequest is a solana: URI for an SPL transfer
type SolanaPayRequest struct {
	URI   string
	Token types.SolanaRail
}

// EVMTransferRequest is an ERC-20 transfer call for eth_sendTransaction
type EVMTransferRequest struct {
	Payload EVMTransferPayload
	Token   types.EVMRail
}

// PayPalRedirect is the hosted checkout URL the user is sent to
type PayPalRedirect struct {
	URL     string
	OrderID string
}

func (SolanaPayRequest) isInstruction()   {}
func (EVMTransferRequest) isInstruction() {}
func (PayPalRedirect) isInstruction()     {}

func (r SolanaPayRequest) Rail() types.Rail   { return r.Token }
func (r EVMTransferRequest) Rail() types.Rail { return r.Token }
func (PayPalRedirect) Rail() types.Rail       { return types.PayPalRail{} }

// Builder builds instructions against a token registry
type Builder struct {
	registry *tokens.Registry
}

// NewBuilder returns a Builder; a nil registry means the built-in one
func NewBuilder(reg *tokens.Registry) *Builder {
	if reg == nil {
		reg = tokens.Default()
	}
	return &Builder{registry: reg}
}

// Build dispatches on the invoice's rail
func (b *Builder) Build(inv *types.Invoice, opts ...SolanaPayOption) (Instruction, error) {
	rail, err := inv.PaymentMethod.Rail()
	if err != nil {
		return nil, err
	}

	switch r := rail.(type) {
	case types.SolanaRail:
		uri, err := buildSolanaPayURI(b.registry, inv, opts...)
		if err != nil {
			return nil, err
		}
		return SolanaPayRequest{URI: uri, Token: r}, nil

	case types.EVMRail:
		p, err := buildEVMTransferPayload(b.registry, inv)
		if err != nil {
			return nil, err
		}
		return EVMTransferRequest{Payload: p, Token: r}, nil

	case types.PayPalRail:
		redirect, err := BuildPayPalRedirect(inv)
		if err != nil {
			return nil, err
		}
		return redirect, nil

	default:
		return nil, types.NewError(types.ErrUnsupportedToken, fmt.Sprintf("no payload builder for rail %T", rail))
	}
}

// BuildSolanaPayURI is BuildSolanaPayURI against b's registry
func (b *Builder) BuildSolanaPayURI(inv *types.Invoice, opts ...SolanaPayOption) (string, error) {
	return buildSolanaPayURI(b.registry, inv, opts...)
}

// BuildEVMTransferPayload is BuildEVMTransferPayload against b's registry
func (b *Builder) BuildEVMTransferPayload(inv *types.Invoice) (EVMTransferPayload, error) {
	return buildEVMTransferPayload(b.registry, inv)
}

// Build dispatches on the invoice's rail using the built-in registry
func Build(inv *types.Invoice, opts ...SolanaPayOption) (Instruction, error) {
	return NewBuilder(nil).Build(inv, opts...)
}

// BuildPayPalRedirect returns the checkout URL of a PayPal invoice
func BuildPayPalRedirect(inv *types.Invoice) (PayPalRedirect, error) {
	if inv.PayPalCheckoutURL == nil || *inv.PayPalCheckoutURL == "" {
		return PayPalRedirect{}, types.NewError(
			types.ErrMissingCheckoutURL,
			fmt.Sprintf("invoice %q has no paypal checkout url", inv.ID),
		)
	}

	u, err := url.Parse(*inv.PayPalCheckoutURL)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return PayPalRedirect{}, types.NewError(
			types.ErrMissingCheckoutURL,
			fmt.Sprintf("invoice %q has an invalid paypal checkout url", inv.ID),
		)
	}

	r := PayPalRedirect{URL: *inv.PayPalCheckoutURL}
	if inv.PayPalOrderID != nil {
		r.OrderID = *inv.PayPalOrderID
	}
	return r, nil
}

func requireAmount(inv *types.Invoice) (decimal.Decimal, error) {
	if inv.ExpectedTokenAmount == nil {
		return decimal.Decimal{}, types.NewError(
			types.ErrMissingAmount,
			fmt.Sprintf("invoice %q has no expected token amount", inv.ID),
		)
	}

	amount := *inv.ExpectedTokenAmount
	if !amount.IsPositive() {
		return decimal.Decimal{}, types.NewError(
			types.ErrInvalidAmount,
			fmt.Sprintf("invoice %q token amount must be greater than 0", inv.ID),
		)
	}
	return amount, nil
}
