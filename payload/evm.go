package payload

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
	"github.com/vitwit/invoicepay/tokens"
	"github.com/vitwit/invoicepay/types"
	"github.com/vitwit/invoicepay/utils"
)

// TransferSelector is the 4-byte selector of ERC-20 transfer(address,uint256)
const TransferSelector = "0xa9059cbb"

const erc20TransferABI = `
[
  {
    "name": "transfer",
    "type": "function",
    "stateMutability": "nonpayable",
    "inputs": [
      { "name": "recipient", "type": "address" },
      { "name": "amount", "type": "uint256" }
    ],
    "outputs": [
      { "name": "", "type": "bool" }
    ]
  }
]
`

var erc20ABI = mustParseABI(erc20TransferABI)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

// EVMTransferPayload is the eth_sendTransaction body a wallet signs. Value is
// always zero: only the ERC-20 call moves funds.
type EVMTransferPayload struct {
	To    string `json:"to"`
	Data  string `json:"data"`
	Value string `json:"value"`
}

// BuildEVMTransferPayload encodes an ERC-20 transfer of the invoice amount
// to the merchant on Base
func BuildEVMTransferPayload(inv *types.Invoice) (EVMTransferPayload, error) {
	return buildEVMTransferPayload(tokens.Default(), inv)
}

func buildEVMTransferPayload(reg *tokens.Registry, inv *types.Invoice) (EVMTransferPayload, error) {
	token, err := reg.Resolve(types.ChainEVM, inv.Symbol())
	if err != nil {
		return EVMTransferPayload{}, err
	}

	amount, err := requireAmount(inv)
	if err != nil {
		return EVMTransferPayload{}, err
	}

	if !common.IsHexAddress(inv.MerchantAddress) {
		return EVMTransferPayload{}, types.NewError(
			types.ErrInvalidRecipient,
			fmt.Sprintf("merchant address %q is not an EVM address", inv.MerchantAddress),
		)
	}

	units, err := utils.ToBaseUnits(amount, token.Decimals)
	if err != nil {
		return EVMTransferPayload{}, err
	}

	data, err := erc20ABI.Pack("transfer", common.HexToAddress(inv.MerchantAddress), units)
	if err != nil {
		return EVMTransferPayload{}, fmt.Errorf("failed to pack transfer call: %w", err)
	}

	return EVMTransferPayload{
		To:    token.Address,
		Data:  hexutil.Encode(data),
		Value: "0x0",
	}, nil
}

// Transfer is a decoded ERC-20 transfer call
type Transfer struct {
	Recipient common.Address
	Units     *big.Int
}

// Amount converts the raw units back to a token amount
func (t Transfer) Amount(decimals int32) decimal.Decimal {
	return utils.FromBaseUnits(t.Units, decimals)
}

// DecodeEVMTransfer parses transfer call data, e.g. to check a payload a
// wallet echoed back before it is signed
func DecodeEVMTransfer(data string) (Transfer, error) {
	raw, err := hexutil.Decode(data)
	if err != nil {
		return Transfer{}, fmt.Errorf("invalid call data: %w", err)
	}
	if len(raw) < 4 || hexutil.Encode(raw[:4]) != TransferSelector {
		return Transfer{}, fmt.Errorf("call data is not an ERC-20 transfer")
	}

	method := erc20ABI.Methods["transfer"]
	values, err := method.Inputs.Unpack(raw[4:])
	if err != nil {
		return Transfer{}, fmt.Errorf("failed to unpack transfer call: %w", err)
	}
	if len(values) != 2 {
		return Transfer{}, fmt.Errorf("unexpected transfer arguments: %d", len(values))
	}

	recipient, ok := values[0].(common.Address)
	if !ok {
		return Transfer{}, fmt.Errorf("unexpected recipient type %T", values[0])
	}
	units, ok := values[1].(*big.Int)
	if !ok {
		return Transfer{}, fmt.Errorf("unexpected amount type %T", values[1])
	}

	return Transfer{Recipient: recipient, Units: units}, nil
}

// VerifyEVMTransfer checks that a payload moves exactly the invoice amount
// of the registered token to the merchant
func VerifyEVMTransfer(inv *types.Invoice, p EVMTransferPayload) error {
	want, err := BuildEVMTransferPayload(inv)
	if err != nil {
		return err
	}
	if !strings.EqualFold(p.To, want.To) {
		return fmt.Errorf("payload targets %s, expected token contract %s", p.To, want.To)
	}
	if p.Value != "0x0" && p.Value != "0x" && p.Value != "" {
		return fmt.Errorf("payload transfers native value %s", p.Value)
	}

	got, err := DecodeEVMTransfer(p.Data)
	if err != nil {
		return err
	}
	expected, err := DecodeEVMTransfer(want.Data)
	if err != nil {
		return err
	}
	if got.Recipient != expected.Recipient {
		return fmt.Errorf("payload pays %s, expected %s", got.Recipient.Hex(), expected.Recipient.Hex())
	}
	if got.Units.Cmp(expected.Units) != 0 {
		return fmt.Errorf("payload amount %s, expected %s", got.Units, expected.Units)
	}
	return nil
}
