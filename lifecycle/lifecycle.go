// Package lifecycle encodes the invoice state machine. The backend owns the
// status; the client only uses these rules to gate actions and to decide
// whether a fetched snapshot supersedes the one it holds.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/vitwit/invoicepay/clock"
	"github.com/vitwit/invoicepay/types"
)

var transitions = map[types.PaymentStatus][]types.PaymentStatus{
	types.StatusPendingPayment: {
		types.StatusProcessing,
		types.StatusExpired,
		types.StatusCancelled,
		// verify may confirm or reject synchronously
		types.StatusConfirmed,
		types.StatusFailed,
	},
	types.StatusProcessing: {
		types.StatusConfirmed,
		types.StatusFailed,
		types.StatusCancelled,
	},
}

// IsTerminal reports whether no transition leaves status
func IsTerminal(status types.PaymentStatus) bool {
	switch status {
	case types.StatusConfirmed, types.StatusFailed, types.StatusExpired, types.StatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransition reports whether from -> to is a legal lifecycle step
func CanTransition(from, to types.PaymentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Effective is the status the client should act on at now. A pending
// invoice past its deadline is treated as expired before the backend says so.
func Effective(inv *types.Invoice, now time.Time) types.PaymentStatus {
	if inv.PaymentStatus == types.StatusPendingPayment && clock.IsExpired(inv.ExpiresAt, now) {
		return types.StatusExpired
	}
	return inv.PaymentStatus
}

// CheckPayable returns nil when the user may still start a payment. Call it
// before showing the pay action and again right before handing the payload
// to the wallet.
func CheckPayable(inv *types.Invoice, now time.Time) error {
	switch status := Effective(inv, now); status {
	case types.StatusPendingPayment:
		return nil
	case types.StatusExpired:
		return types.NewError(
			types.ErrInvoiceExpired,
			fmt.Sprintf("invoice %s expired at %s; request a new invoice", inv.ID, inv.ExpiresAt.UTC().Format(time.RFC3339)),
		)
	default:
		return types.NewError(
			types.ErrInvalidTransition,
			fmt.Sprintf("invoice %s is %s and cannot be paid", inv.ID, status),
		)
	}
}

// CheckCancelable returns nil when the invoice can still be cancelled
func CheckCancelable(inv *types.Invoice) error {
	if IsTerminal(inv.PaymentStatus) {
		return types.NewError(
			types.ErrInvalidTransition,
			fmt.Sprintf("invoice %s is %s and cannot be cancelled", inv.ID, inv.PaymentStatus),
		)
	}
	return nil
}

// Accept folds a fetched snapshot into the held one. It returns the snapshot
// to hold and whether next replaced current. Snapshots that would leave a
// terminal state or move the lifecycle backwards are stale and ignored.
func Accept(current, next *types.Invoice) (*types.Invoice, bool, error) {
	if next == nil {
		return current, false, nil
	}
	if current == nil {
		return next, true, nil
	}
	if current.ID != next.ID {
		return current, false, types.NewError(
			types.ErrInvalidInvoice,
			fmt.Sprintf("snapshot for invoice %s does not match held invoice %s", next.ID, current.ID),
		)
	}
	if !next.PaymentStatus.Valid() {
		return current, false, types.NewError(
			types.ErrInvalidInvoice,
			fmt.Sprintf("invoice %s has unknown status %q", next.ID, next.PaymentStatus),
		)
	}

	if current.PaymentStatus == next.PaymentStatus {
		// A terminal invoice may still gain its receipt URL.
		return next, true, nil
	}
	if IsTerminal(current.PaymentStatus) {
		return current, false, nil
	}
	if !CanTransition(current.PaymentStatus, next.PaymentStatus) {
		return current, false, nil
	}
	return next, true, nil
}
