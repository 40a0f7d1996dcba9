// Package display turns invoice snapshots into strings and colors for a UI.
// Everything here is pure.
package display

import (
	"fmt"
	"time"

	"github.com/vitwit/invoicepay/clock"
	"github.com/vitwit/invoicepay/types"
)

var currencySymbols = map[types.FiatCurrency]string{
	types.CurrencyUSD: "$",
	types.CurrencyEUR: "€",
}

// FormatInvoiceAmount renders the fiat price with two decimals, followed by
// the token amount for crypto invoices, e.g. "$100.00 (100 USDC)"
func FormatInvoiceAmount(inv *types.Invoice) string {
	prefix, ok := currencySymbols[inv.FiatCurrency]
	if !ok {
		prefix = string(inv.FiatCurrency) + " "
	}
	out := prefix + inv.AmountFiat.StringFixed(2)

	if inv.ExpectedTokenAmount != nil && inv.Symbol() != "" {
		out += fmt.Sprintf(" (%s %s)", inv.ExpectedTokenAmount.String(), inv.Symbol())
	}
	return out
}

// StatusLabel is the text and hex color shown for a status
type StatusLabel struct {
	Text  string
	Color string
}

var statusLabels = map[types.PaymentStatus]StatusLabel{
	types.StatusPendingPayment: {Text: "Awaiting payment", Color: "#F59E0B"},
	types.StatusProcessing:     {Text: "Processing", Color: "#3B82F6"},
	types.StatusConfirmed:      {Text: "Confirmed", Color: "#10B981"},
	types.StatusFailed:         {Text: "Failed", Color: "#EF4444"},
	types.StatusExpired:        {Text: "Expired", Color: "#6B7280"},
	types.StatusCancelled:      {Text: "Cancelled", Color: "#9CA3AF"},
}

var unknownLabel = StatusLabel{Text: "Unknown", Color: "#6B7280"}

// StatusDisplay never fails; unknown values get a neutral label
func StatusDisplay(status types.PaymentStatus) StatusLabel {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return unknownLabel
}

var explorers = map[types.Network]string{
	types.NetworkSolana: "https://explorer.solana.com/tx/%s",
	types.NetworkBase:   "https://basescan.org/tx/%s",
}

// ExplorerURL links a transaction on its network's block explorer
func ExplorerURL(hash string, network types.Network) (string, error) {
	tmpl, ok := explorers[network]
	if !ok {
		return "", types.NewError(types.ErrUnsupportedNetwork, fmt.Sprintf("no explorer for network %q", network))
	}
	return fmt.Sprintf(tmpl, hash), nil
}

// TimeRemaining parses an ISO-8601 deadline and returns the time left at now
func TimeRemaining(expiresAtISO string, now time.Time) (clock.Remaining, error) {
	return clock.ParseRemaining(expiresAtISO, now)
}

// FormatCountdown renders "MM:SS", or "Expired" once the deadline passed
func FormatCountdown(r clock.Remaining) string {
	if r.Expired {
		return "Expired"
	}
	return fmt.Sprintf("%02d:%02d", r.Minutes, r.Seconds)
}

// Receipt describes whether a receipt can be shown
type Receipt struct {
	State ReceiptKind
	URL   string
}

type ReceiptKind int

const (
	ReceiptNone ReceiptKind = iota
	// ReceiptPending is a confirmed invoice whose PDF is still being issued.
	ReceiptPending
	ReceiptAvailable
)

func (k ReceiptKind) String() string {
	switch k {
	case ReceiptPending:
		return "pending"
	case ReceiptAvailable:
		return "available"
	default:
		return "none"
	}
}

// ReceiptState reports the receipt for inv. Only confirmed invoices have one.
func ReceiptState(inv *types.Invoice) Receipt {
	if inv.PaymentStatus != types.StatusConfirmed {
		return Receipt{State: ReceiptNone}
	}
	if !inv.HasReceipt() {
		return Receipt{State: ReceiptPending}
	}
	return Receipt{State: ReceiptAvailable, URL: *inv.IssuedPDFURL}
}
