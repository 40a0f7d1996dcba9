package payload

import (
	"net/url"
	"strings"

	"github.com/vitwit/invoicepay/tokens"
	"github.com/vitwit/invoicepay/types"
)

// SolanaPayOption adds an optional field to a Solana Pay URI
type SolanaPayOption func(*solanaPayFields)

type solanaPayFields struct {
	label   string
	message string
	memo    string
}

func WithLabel(label string) SolanaPayOption {
	return func(f *solanaPayFields) { f.label = label }
}

func WithMessage(message string) SolanaPayOption {
	return func(f *solanaPayFields) { f.message = message }
}

func WithMemo(memo string) SolanaPayOption {
	return func(f *solanaPayFields) { f.memo = memo }
}

// BuildSolanaPayURI renders the solana: transfer request a wallet scans.
// A URI pre-rendered by the backend is returned unchanged.
func BuildSolanaPayURI(inv *types.Invoice, opts ...SolanaPayOption) (string, error) {
	return buildSolanaPayURI(tokens.Default(), inv, opts...)
}

func buildSolanaPayURI(reg *tokens.Registry, inv *types.Invoice, opts ...SolanaPayOption) (string, error) {
	// Any server-rendered value wins, even an empty one.
	if inv.SolanaPayURI != nil {
		return *inv.SolanaPayURI, nil
	}

	token, err := reg.Resolve(types.ChainSolana, inv.Symbol())
	if err != nil {
		return "", err
	}

	amount, err := requireAmount(inv)
	if err != nil {
		return "", err
	}

	var fields solanaPayFields
	for _, opt := range opts {
		opt(&fields)
	}

	// Field order is fixed so the same invoice always yields the same URI.
	params := []struct{ key, value string }{
		{"amount", amount.String()},
		{"spl-token", token.Address},
		{"reference", inv.ID},
		{"label", fields.label},
		{"message", fields.message},
		{"memo", fields.memo},
	}

	var b strings.Builder
	b.WriteString("solana:")
	b.WriteString(inv.MerchantAddress)
	sep := byte('?')
	for _, p := range params {
		if p.value == "" {
			continue
		}
		b.WriteByte(sep)
		b.WriteString(p.key)
		b.WriteByte('=')
		b.WriteString(encodeComponent(p.value))
		sep = '&'
	}

	return b.String(), nil
}

// encodeComponent percent-encodes like encodeURIComponent: spaces become
// %20, not +.
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
