package chain

import (
	"context"
	"errors"
	"fmt"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

var _ Observer = (*EVMObserver)(nil)

// EVMObserver reads transaction receipts from an EVM JSON-RPC node
type EVMObserver struct {
	rpcURL string
	client *ethclient.Client
}

func NewEVMObserver(rpcURL string) (*EVMObserver, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to EVM RPC: %w", err)
	}

	return &EVMObserver{
		rpcURL: rpcURL,
		client: client,
	}, nil
}

// TxStatus maps the receipt status; a missing receipt means the transaction
// has not been mined yet
func (e *EVMObserver) TxStatus(ctx context.Context, hash string) (TxStatus, error) {
	receipt, err := e.client.TransactionReceipt(ctx, common.HexToHash(hash))
	if errors.Is(err, ethereum.NotFound) {
		return TxPending, nil
	}
	if err != nil {
		return TxUnknown, err
	}

	if receipt.Status == ethtypes.ReceiptStatusSuccessful {
		return TxSucceeded, nil
	}
	return TxReverted, nil
}

func (e *EVMObserver) Close() {
	e.client.Close()
}
