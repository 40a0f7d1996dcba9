// Package chain reads the on-chain status of a submitted transfer. It is
// informational only: the backend remains the authority on invoice status.
package chain

import (
	"context"
)

// TxStatus is what a node currently reports for a transaction
type TxStatus string

const (
	TxUnknown   TxStatus = ""
	TxPending   TxStatus = "pending"
	TxSucceeded TxStatus = "succeeded"
	TxReverted  TxStatus = "reverted"
)

// Observer looks up a transaction by hash or signature
type Observer interface {
	TxStatus(ctx context.Context, hash string) (TxStatus, error)
	Close()
}
