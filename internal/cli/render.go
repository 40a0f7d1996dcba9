package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/vitwit/invoicepay/chain"
	"github.com/vitwit/invoicepay/clock"
	"github.com/vitwit/invoicepay/display"
	"github.com/vitwit/invoicepay/lifecycle"
	"github.com/vitwit/invoicepay/tokens"
	"github.com/vitwit/invoicepay/types"
)

var (
	dim = lipgloss.Color("#6B7280")
	fg  = lipgloss.Color("#E8E6E3")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(fg)
	keyStyle   = lipgloss.NewStyle().Foreground(dim).Width(9)
	dimStyle   = lipgloss.NewStyle().Foreground(dim)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(dim).
			Padding(0, 2)
)

func statusBadge(status types.PaymentStatus) string {
	label := display.StatusDisplay(status)
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(label.Color)).
		Render("● " + label.Text)
}

func row(key, value string) string {
	return keyStyle.Render(key) + " " + value
}

// renderInvoice draws one invoice snapshot as it stands at now
func renderInvoice(inv *types.Invoice, now time.Time, tx chain.TxStatus) string {
	status := lifecycle.Effective(inv, now)

	title := "Invoice " + inv.ID
	if inv.InvoiceNumber != nil {
		title += "  " + dimStyle.Render(*inv.InvoiceNumber)
	}

	rows := []string{
		titleStyle.Render(title),
		"",
		row("Status", statusBadge(status)),
		row("Amount", display.FormatInvoiceAmount(inv)),
		row("Method", string(inv.PaymentMethod)),
	}

	if status == types.StatusPendingPayment {
		rows = append(rows, row("Expires", display.FormatCountdown(clock.TimeRemaining(inv.ExpiresAt, now))))
	}

	if inv.TransactionHash != nil {
		txLine := *inv.TransactionHash
		if inv.Network != nil {
			if url, err := display.ExplorerURL(*inv.TransactionHash, *inv.Network); err == nil {
				txLine = url
			}
		}
		if tx != chain.TxUnknown {
			txLine += dimStyle.Render(fmt.Sprintf(" (%s on chain)", tx))
		}
		rows = append(rows, row("Tx", txLine))
	}

	switch receipt := display.ReceiptState(inv); receipt.State {
	case display.ReceiptAvailable:
		rows = append(rows, row("Receipt", receipt.URL))
	case display.ReceiptPending:
		rows = append(rows, row("Receipt", dimStyle.Render("being issued")))
	}

	return boxStyle.Render(strings.Join(rows, "\n"))
}

func renderTokens(infos []tokens.TokenInfo) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%-8s %-6s %-9s %-8s %s", "FAMILY", "TOKEN", "STANDARD", "DECIMALS", "ADDRESS")))
	b.WriteString("\n")
	for _, t := range infos {
		fmt.Fprintf(&b, "%-8s %-6s %-9s %-8d %s\n", t.Family, t.Symbol, t.Standard, t.Decimals, t.Address)
	}
	return b.String()
}
