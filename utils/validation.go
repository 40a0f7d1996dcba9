package utils

import (
	"fmt"
	"math/big"
	"regexp"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/vitwit/invoicepay/types"
)

var evmTxHash = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// ValidateAmount parses a user-entered amount string as a non-negative decimal
func ValidateAmount(amount string) (*decimal.Decimal, error) {
	if amount == "" {
		return nil, types.NewError(types.ErrInvalidAmount, "amount cannot be empty")
	}

	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, types.WrapError(types.ErrInvalidAmount, fmt.Sprintf("invalid amount format %q", amount), err)
	}

	if dec.IsNegative() {
		return nil, types.NewError(types.ErrInvalidAmount, "amount cannot be negative")
	}

	return &dec, nil
}

// ToBaseUnits scales a token amount to its smallest unit. It fails rather
// than rounds when the amount has more fractional digits than the token.
func ToBaseUnits(amount decimal.Decimal, decimals int32) (*big.Int, error) {
	if amount.IsNegative() {
		return nil, types.NewError(types.ErrInvalidAmount, "amount cannot be negative")
	}

	scaled := amount.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, types.NewError(
			types.ErrInvalidAmount,
			fmt.Sprintf("amount %s has more than %d decimal places", amount.String(), decimals),
		)
	}

	return scaled.BigInt(), nil
}

// FromBaseUnits is the inverse of ToBaseUnits
func FromBaseUnits(amount *big.Int, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(amount, -decimals)
}

// ValidateTransactionHash validates a transaction hash for a network
func ValidateTransactionHash(hash string, network types.Network) error {
	if hash == "" {
		return fmt.Errorf("transaction hash cannot be empty")
	}

	switch network {
	case types.NetworkBase:
		if !evmTxHash.MatchString(hash) {
			return fmt.Errorf("EVM transaction hash must be 0x followed by 64 hex characters")
		}

	case types.NetworkSolana:
		if _, err := solana.SignatureFromBase58(hash); err != nil {
			return fmt.Errorf("invalid Solana transaction signature: %w", err)
		}

	default:
		return fmt.Errorf("unsupported network for transaction hash validation: %q", network)
	}

	return nil
}

// ValidateAddressForNetwork validates a wallet or merchant address
func ValidateAddressForNetwork(address string, network types.Network) error {
	if address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	switch network {
	case types.NetworkBase:
		if !common.IsHexAddress(address) {
			return fmt.Errorf("invalid EVM address %q", address)
		}

	case types.NetworkSolana:
		if _, err := solana.PublicKeyFromBase58(address); err != nil {
			return fmt.Errorf("invalid Solana address %q: %w", address, err)
		}

	default:
		return fmt.Errorf("unsupported network for address validation: %q", network)
	}

	return nil
}
