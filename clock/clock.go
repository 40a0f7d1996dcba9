// Package clock derives the payment countdown of an invoice from its absolute
// expiry and wall-clock time. Nothing here touches the network.
package clock

import (
	"context"
	"sync"
	"time"

	"github.com/vitwit/invoicepay/utils"
)

// Clock supplies the current time
type Clock interface {
	Now() time.Time
}

// System is the wall clock
type System struct{}

func (System) Now() time.Time { return time.Now() }

// Fixed is a settable clock for tests
type Fixed struct {
	mu sync.Mutex
	t  time.Time
}

func NewFixed(t time.Time) *Fixed {
	return &Fixed{t: t}
}

func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

// Set moves the clock to t
func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	f.t = t
	f.mu.Unlock()
}

// Advance moves the clock forward by d
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

// Remaining is the countdown shown next to a payable invoice
type Remaining struct {
	Minutes int  `json:"minutes"`
	Seconds int  `json:"seconds"`
	Expired bool `json:"expired"`
}

// TimeRemaining computes max(0, expiresAt-now) in whole minutes and seconds.
// Minutes is not capped at 59.
func TimeRemaining(expiresAt, now time.Time) Remaining {
	diff := expiresAt.Sub(now)
	if diff <= 0 {
		return Remaining{Expired: true}
	}
	total := int(diff / time.Second)
	return Remaining{
		Minutes: total / 60,
		Seconds: total % 60,
	}
}

// IsExpired reports whether the deadline has passed at now
func IsExpired(expiresAt, now time.Time) bool {
	return !now.Before(expiresAt)
}

// ParseRemaining is TimeRemaining over an ISO-8601 expiry string
func ParseRemaining(expiresAtISO string, now time.Time) (Remaining, error) {
	expiresAt, err := utils.ParseFlexibleTime(expiresAtISO)
	if err != nil {
		return Remaining{}, err
	}
	return TimeRemaining(expiresAt, now), nil
}

// Ticker recomputes the countdown on a fixed interval until the invoice
// expires or the ticker is stopped. C is closed when the ticker finishes.
type Ticker struct {
	C <-chan Remaining

	cancel context.CancelFunc
	done   chan struct{}
}

// Countdown starts a Ticker. The first value is sent immediately.
func Countdown(ctx context.Context, clk Clock, expiresAt time.Time, interval time.Duration) *Ticker {
	if interval <= 0 {
		interval = time.Second
	}
	ctx, cancel := context.WithCancel(ctx)
	out := make(chan Remaining, 1)
	t := &Ticker{C: out, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(t.done)
		defer close(out)

		tick := time.NewTicker(interval)
		defer tick.Stop()

		for {
			r := TimeRemaining(expiresAt, clk.Now())
			select {
			case out <- r:
			case <-ctx.Done():
				return
			}
			if r.Expired {
				return
			}
			select {
			case <-tick.C:
			case <-ctx.Done():
				return
			}
		}
	}()

	return t
}

// Stop halts the ticker and waits for it to finish
func (t *Ticker) Stop() {
	t.cancel()
	<-t.done
}
