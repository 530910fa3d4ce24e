// Pending-payment poll loop, bridging the gap between checkout redirect and
// webhook delivery.

package app

import (
	"context"
	"errors"
	"time"
)

// PollState is a terminal outcome of a payment poll.
type PollState string

const (
	PollSuccess PollState = "success"
	PollError   PollState = "error"
)

// ErrPollExhausted means the webhook never landed within the allowed attempts.
var ErrPollExhausted = errors.New("payment processing timed out")

// PaymentPoller asks Check at a fixed interval until the webhook has landed or
// the attempt cap is hit. No backoff: webhook latency is expected to be low,
// so a short fixed cadence is enough.
type PaymentPoller struct {
	Interval    time.Duration
	MaxAttempts int

	// Check reports whether the webhook has processed the session.
	Check func(ctx context.Context, sessionID string) (bool, error)
}

// NewPaymentPoller returns a poller with the stock cadence: 2s x 5 attempts.
func NewPaymentPoller(check func(ctx context.Context, sessionID string) (bool, error)) *PaymentPoller {
	return &PaymentPoller{
		Interval:    2 * time.Second,
		MaxAttempts: 5,
		Check:       check,
	}
}

// PollResult reports how a poll ended.
type PollResult struct {
	State    PollState
	Attempts int
}

// Wait blocks until the payment is confirmed, the attempt cap is exhausted, a
// check fails, or ctx is cancelled. Any transport failure is terminal: the
// caller shows the support-contact screen with the session id either way.
func (p *PaymentPoller) Wait(ctx context.Context, sessionID string) (PollResult, error) {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	attempts := 0
	for {
		select {
		case <-ctx.Done():
			return PollResult{State: PollError, Attempts: attempts}, ctx.Err()
		case <-ticker.C:
		}

		attempts++
		processed, err := p.Check(ctx, sessionID)
		if err != nil {
			return PollResult{State: PollError, Attempts: attempts}, err
		}
		if processed {
			return PollResult{State: PollSuccess, Attempts: attempts}, nil
		}
		if attempts >= p.MaxAttempts {
			return PollResult{State: PollError, Attempts: attempts}, ErrPollExhausted
		}
	}
}
