package chain

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

var _ Observer = (*SolanaObserver)(nil)

// SolanaObserver reads signature statuses from a Solana RPC node
type SolanaObserver struct {
	rpcURL string
	client *rpc.Client
}

func NewSolanaObserver(rpcURL string) *SolanaObserver {
	return &SolanaObserver{
		rpcURL: rpcURL,
		client: rpc.New(rpcURL),
	}
}

// TxStatus treats confirmed and finalized signatures as succeeded
func (s *SolanaObserver) TxStatus(ctx context.Context, hash string) (TxStatus, error) {
	sig, err := solana.SignatureFromBase58(hash)
	if err != nil {
		return TxUnknown, fmt.Errorf("invalid signature: %w", err)
	}

	out, err := s.client.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return TxUnknown, err
	}
	if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
		return TxPending, nil
	}

	status := out.Value[0]
	if status.Err != nil {
		return TxReverted, nil
	}
	switch status.ConfirmationStatus {
	case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
		return TxSucceeded, nil
	default:
		return TxPending, nil
	}
}

func (s *SolanaObserver) Close() {}
