// Package session owns the client-side view of a single invoice: it polls the
// backend, folds snapshots through the lifecycle rules and publishes each
// accepted snapshot to the caller.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vitwit/invoicepay/chain"
	"github.com/vitwit/invoicepay/clock"
	"github.com/vitwit/invoicepay/lifecycle"
	"github.com/vitwit/invoicepay/logger"
	"github.com/vitwit/invoicepay/payload"
	"github.com/vitwit/invoicepay/types"
)

// Reconciler is the subset of reconcile.Reconciler a session drives
type Reconciler interface {
	Verify(ctx context.Context, id, txHash, walletAddress string, network types.Network) (*types.Invoice, error)
	CheckStatus(ctx context.Context, id string) (*types.Invoice, error)
	Cancel(ctx context.Context, id string) (*types.Invoice, error)
}

// Update is published every time the held snapshot changes or the chain
// observer reports something new
type Update struct {
	Invoice *types.Invoice
	// Status is the effective status at publication time; a pending invoice
	// past its deadline shows as EXPIRED before the backend confirms it.
	Status types.PaymentStatus
	// Chain is informational and never advances the lifecycle.
	Chain chain.TxStatus
}

type Option func(*Session)

func WithPollInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithClock(c clock.Clock) Option {
	return func(s *Session) {
		if c != nil {
			s.clock = c
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(s *Session) {
		s.logger = logger.OrNoop(l)
	}
}

// WithObserver reads the on-chain status of the submitted transaction on
// every poll while the invoice is PROCESSING
func WithObserver(o chain.Observer) Option {
	return func(s *Session) {
		s.observer = o
	}
}

func WithBuilder(b *payload.Builder) Option {
	return func(s *Session) {
		if b != nil {
			s.builder = b
		}
	}
}

// Session is an explicitly owned handle for one invoice. Close must be
// called to release it.
type Session struct {
	rec      Reconciler
	builder  *payload.Builder
	clock    clock.Clock
	interval time.Duration
	observer chain.Observer
	logger   logger.Logger

	// callMu keeps at most one reconciliation call in flight.
	callMu sync.Mutex

	mu        sync.RWMutex
	inv       *types.Invoice
	lastChain chain.TxStatus
	updates   chan Update
	finished  bool

	startOnce sync.Once
	stopOnce  sync.Once
	closeOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

// Open wraps inv in a session. Polling does not start until Start.
func Open(rec Reconciler, inv *types.Invoice, opts ...Option) *Session {
	s := &Session{
		rec:      rec,
		builder:  payload.NewBuilder(nil),
		clock:    clock.System{},
		interval: types.DefaultPollInterval,
		logger:   logger.NoopLogger{},
		inv:      inv,
		updates:  make(chan Update, 1),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the poll loop. Calls after the first are no-ops.
func (s *Session) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		loopCtx, cancel := context.WithCancel(ctx)
		s.mu.Lock()
		s.cancel = cancel
		s.mu.Unlock()
		go s.run(loopCtx)
	})
}

// Updates delivers accepted snapshots. Only the latest undelivered update is
// kept. The channel is closed once a terminal state is held or on Close.
func (s *Session) Updates() <-chan Update {
	return s.updates
}

// Current returns the held snapshot
func (s *Session) Current() *types.Invoice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inv
}

// Status returns the effective status of the held snapshot
func (s *Session) Status() types.PaymentStatus {
	return lifecycle.Effective(s.Current(), s.clock.Now())
}

// Remaining returns the time left before the held invoice expires
func (s *Session) Remaining() clock.Remaining {
	return clock.TimeRemaining(s.Current().ExpiresAt, s.clock.Now())
}

// Countdown emits Remaining values until the invoice expires or ctx ends
func (s *Session) Countdown(ctx context.Context, interval time.Duration) *clock.Ticker {
	return clock.Countdown(ctx, s.clock, s.Current().ExpiresAt, interval)
}

// Payable re-checks that the pay action is still allowed. Call it right
// before handing a prepared instruction to the wallet.
func (s *Session) Payable() error {
	return lifecycle.CheckPayable(s.Current(), s.clock.Now())
}

// Prepare checks payability and builds the payment instruction
func (s *Session) Prepare(opts ...payload.SolanaPayOption) (payload.Instruction, error) {
	inv := s.Current()
	if err := lifecycle.CheckPayable(inv, s.clock.Now()); err != nil {
		return nil, err
	}
	return s.builder.Build(inv, opts...)
}

// Submit reports a broadcast transaction. A PENDING invoice must still be
// payable; a PROCESSING one accepts the call as a retry.
func (s *Session) Submit(ctx context.Context, txHash, walletAddress string) (*types.Invoice, error) {
	s.callMu.Lock()
	defer s.callMu.Unlock()

	inv := s.Current()
	switch inv.PaymentStatus {
	case types.StatusPendingPayment:
		if err := lifecycle.CheckPayable(inv, s.clock.Now()); err != nil {
			return nil, err
		}
	case types.StatusProcessing:
	default:
		return nil, types.NewError(
			types.ErrInvalidTransition,
			fmt.Sprintf("invoice %s is %s; no transaction can be submitted", inv.ID, inv.PaymentStatus),
		)
	}

	rail, err := inv.PaymentMethod.Rail()
	if err != nil {
		return nil, err
	}
	network, ok := types.RailNetwork(rail)
	if !ok {
		return nil, types.NewError(
			types.ErrVerificationFailed,
			fmt.Sprintf("invoice %s is paid through %s; there is no transaction to verify", inv.ID, inv.PaymentMethod),
		)
	}

	next, err := s.rec.Verify(ctx, inv.ID, txHash, walletAddress, network)
	if err != nil {
		return nil, err
	}
	return s.apply(next, s.chainStatus()), nil
}

// Cancel withdraws the invoice on the backend
func (s *Session) Cancel(ctx context.Context) (*types.Invoice, error) {
	s.callMu.Lock()
	defer s.callMu.Unlock()

	inv := s.Current()
	if err := lifecycle.CheckCancelable(inv); err != nil {
		return nil, err
	}

	next, err := s.rec.Cancel(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	return s.apply(next, s.chainStatus()), nil
}

// StopWaiting stops polling. The held snapshot is left as it is; a submitted
// transfer is never marked failed because the caller stopped watching.
func (s *Session) StopWaiting() {
	s.stopOnce.Do(func() {
		// A session that was never started has no loop to wait for.
		s.startOnce.Do(func() { close(s.done) })

		s.mu.RLock()
		cancel := s.cancel
		s.mu.RUnlock()
		if cancel != nil {
			cancel()
		}
	})
	<-s.done
}

// Close stops polling and closes Updates
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.StopWaiting()
		s.mu.Lock()
		s.finish()
		s.mu.Unlock()
	})
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if lifecycle.IsTerminal(s.Current().PaymentStatus) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		s.poll(ctx)
	}
}

func (s *Session) poll(ctx context.Context) {
	s.callMu.Lock()
	defer s.callMu.Unlock()

	inv := s.Current()
	if lifecycle.IsTerminal(inv.PaymentStatus) {
		return
	}

	next, err := s.rec.CheckStatus(ctx, inv.ID)
	if err != nil {
		s.logger.Debug("poll failed", map[string]any{
			"invoice_id": inv.ID,
			"error":      err,
		})
		return
	}

	s.apply(next, s.observe(ctx, next))
}

// observe asks the chain observer about the submitted hash. Errors are
// logged and leave the previous reading in place.
func (s *Session) observe(ctx context.Context, inv *types.Invoice) chain.TxStatus {
	prev := s.chainStatus()
	if s.observer == nil || inv == nil || inv.TransactionHash == nil {
		return prev
	}
	if inv.PaymentStatus != types.StatusProcessing {
		return prev
	}

	status, err := s.observer.TxStatus(ctx, *inv.TransactionHash)
	if err != nil {
		s.logger.Debug("chain lookup failed", map[string]any{
			"invoice_id": inv.ID,
			"tx_hash":    *inv.TransactionHash,
			"error":      err,
		})
		return prev
	}
	return status
}

func (s *Session) chainStatus() chain.TxStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastChain
}

// apply folds next into the held snapshot and publishes when anything
// changed. It returns the snapshot held afterwards.
func (s *Session) apply(next *types.Invoice, chainStatus chain.TxStatus) *types.Invoice {
	s.mu.Lock()
	defer s.mu.Unlock()

	held, accepted, err := lifecycle.Accept(s.inv, next)
	if err != nil {
		s.logger.Warn("snapshot rejected", map[string]any{
			"invoice_id": s.inv.ID,
			"error":      err,
		})
		return s.inv
	}

	chainChanged := chainStatus != s.lastChain
	s.lastChain = chainStatus
	if !accepted && !chainChanged {
		if next != nil && next.PaymentStatus != held.PaymentStatus {
			s.logger.Debug("stale snapshot ignored", map[string]any{
				"invoice_id": held.ID,
				"status":     next.PaymentStatus,
				"held":       held.PaymentStatus,
			})
		}
		return held
	}

	if accepted && held.PaymentStatus != s.inv.PaymentStatus {
		s.logger.Info("invoice status changed", map[string]any{
			"invoice_id": held.ID,
			"from":       s.inv.PaymentStatus,
			"status":     held.PaymentStatus,
		})
	}
	s.inv = held

	s.publish(Update{
		Invoice: held,
		Status:  lifecycle.Effective(held, s.clock.Now()),
		Chain:   chainStatus,
	})
	if lifecycle.IsTerminal(held.PaymentStatus) {
		s.finish()
	}
	return held
}

// publish replaces any undelivered update with u. Callers hold s.mu, so the
// send below never blocks.
func (s *Session) publish(u Update) {
	if s.finished {
		return
	}
	select {
	case <-s.updates:
	default:
	}
	s.updates <- u
}

func (s *Session) finish() {
	if s.finished {
		return
	}
	s.finished = true
	close(s.updates)
}
