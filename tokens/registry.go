// Package tokens holds the table of stablecoins each payment rail can settle
// in. Payload builders resolve addresses here and nowhere else.
package tokens

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"
	"github.com/vitwit/invoicepay/types"
)

// TokenStandard represents different token standards
type TokenStandard string

const (
	StandardSPL   TokenStandard = "spl"
	StandardERC20 TokenStandard = "erc20"
)

// TokenInfo contains information about a registered token
type TokenInfo struct {
	Family   types.ChainFamily `json:"family"`
	Symbol   string            `json:"symbol"`
	Name     string            `json:"name"`
	Standard TokenStandard     `json:"standard"`
	Address  string            `json:"address"` // SPL mint or ERC-20 contract
	Decimals int32             `json:"decimals"`
}

type key struct {
	family types.ChainFamily
	symbol string
}

// Registry maps (chain family, symbol) to a token
type Registry struct {
	entries map[key]TokenInfo
}

// NewRegistry builds a registry and checks every address against its
// chain's address format
func NewRegistry(infos ...TokenInfo) (*Registry, error) {
	r := &Registry{entries: make(map[key]TokenInfo, len(infos))}
	for _, info := range infos {
		if err := checkAddress(info); err != nil {
			return nil, err
		}
		info.Symbol = strings.ToUpper(info.Symbol)
		k := key{family: info.Family, symbol: info.Symbol}
		if _, dup := r.entries[k]; dup {
			return nil, fmt.Errorf("duplicate token %s/%s", info.Family, info.Symbol)
		}
		r.entries[k] = info
	}
	return r, nil
}

func checkAddress(info TokenInfo) error {
	switch info.Family {
	case types.ChainSolana:
		if _, err := solana.PublicKeyFromBase58(info.Address); err != nil {
			return fmt.Errorf("token %s: invalid mint %q: %w", info.Symbol, info.Address, err)
		}
	case types.ChainEVM:
		if !common.IsHexAddress(info.Address) {
			return fmt.Errorf("token %s: invalid contract address %q", info.Symbol, info.Address)
		}
	default:
		return fmt.Errorf("token %s: unknown chain family %q", info.Symbol, info.Family)
	}
	if info.Decimals < 0 {
		return fmt.Errorf("token %s: negative decimals", info.Symbol)
	}
	return nil
}

// Resolve looks up the token for a chain family and symbol
func (r *Registry) Resolve(family types.ChainFamily, symbol string) (TokenInfo, error) {
	info, ok := r.entries[key{family: family, symbol: strings.ToUpper(strings.TrimSpace(symbol))}]
	if !ok {
		return TokenInfo{}, types.NewError(
			types.ErrUnsupportedToken,
			fmt.Sprintf("unsupported token %q on %s", symbol, family),
		)
	}
	return info, nil
}

// All returns every registered token ordered by family then symbol
func (r *Registry) All() []TokenInfo {
	out := make([]TokenInfo, 0, len(r.entries))
	for _, info := range r.entries {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Family != out[j].Family {
			return out[i].Family > out[j].Family
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

var defaultRegistry = mustRegistry(
	TokenInfo{Family: types.ChainSolana, Symbol: "USDC", Name: "USD Coin", Standard: StandardSPL, Address: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Decimals: 6},
	TokenInfo{Family: types.ChainSolana, Symbol: "EURC", Name: "Euro Coin", Standard: StandardSPL, Address: "HzwqbKZw8HxMN6bF2yFZNrht3c2iXXzpKcFu7uBEDKtr", Decimals: 6},
	TokenInfo{Family: types.ChainEVM, Symbol: "USDC", Name: "USD Coin", Standard: StandardERC20, Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", Decimals: 6},
	TokenInfo{Family: types.ChainEVM, Symbol: "EURC", Name: "Euro Coin", Standard: StandardERC20, Address: "0x60a3E35Cc302bFA44Cb288Bc5a4F316Fdb1adb42", Decimals: 6},
)

func mustRegistry(infos ...TokenInfo) *Registry {
	r, err := NewRegistry(infos...)
	if err != nil {
		panic(err)
	}
	return r
}

// Default returns the built-in registry
func Default() *Registry {
	return defaultRegistry
}

// Resolve looks up a token in the built-in registry
func Resolve(family types.ChainFamily, symbol string) (TokenInfo, error) {
	return defaultRegistry.Resolve(family, symbol)
}

// All lists the built-in registry
func All() []TokenInfo {
	return defaultRegistry.All()
}
