package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerSettings tunes the circuit breaker around a Mailer.
type BreakerSettings struct {
	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

// BreakerMailer fails fast while the wrapped mailer keeps failing.
type BreakerMailer struct {
	next Mailer
	cb   *gobreaker.CircuitBreaker[struct{}]
}

func NewBreakerMailer(next Mailer, s BreakerSettings) *BreakerMailer {
	if s.FailureThreshold == 0 {
		s.FailureThreshold = 5
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = 30 * time.Second
	}
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "mailer",
		MaxRequests: 1,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
		// A caller giving up is not a transport failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return &BreakerMailer{next: next, cb: cb}
}

func (b *BreakerMailer) Configured() bool { return b.next.Configured() }

func (b *BreakerMailer) Send(ctx context.Context, e Email) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, b.next.Send(ctx, e)
	})
	return err
}

// State reports the breaker state: "closed", "half-open" or "open".
func (b *BreakerMailer) State() string { return b.cb.State().String() }

func isBreakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
