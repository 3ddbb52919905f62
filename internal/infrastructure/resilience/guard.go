package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/d3i-infra/port-google-home/internal/core/domain"
)

// Disposition tells the guard what a delivery failure means.
type Disposition int

const (
	// Fail is a permanent failure that counts against the breaker.
	Fail Disposition = iota
	// Retry is a transient failure: redeliver within the retry budget.
	Retry
	// Reject is the caller's fault (bad payload, cancelled request); it is
	// neither retried nor held against the downstream.
	Reject
)

type Classifier func(err error) Disposition

// Guard delivers donations to a downstream (queue or database) with
// budgeted retries behind one circuit breaker per operation.
type Guard struct {
	policy Policy

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[struct{}]
}

func NewGuard(policy Policy) *Guard {
	return &Guard{
		policy:   policy.withDefaults(),
		breakers: make(map[string]*gobreaker.CircuitBreaker[struct{}]),
	}
}

// Deliver runs fn until it succeeds, the classifier stops it, the attempts
// or the time budget run out, or ctx ends.
func (g *Guard) Deliver(ctx context.Context, operation string, fn func(context.Context) error, classify Classifier) error {
	if fn == nil {
		return fmt.Errorf("deliver %s: nil delivery func", operation)
	}
	if classify == nil {
		classify = ClassifyDomain
	}
	if !g.policy.Breaker.Enabled {
		return g.redeliver(ctx, operation, fn, classify)
	}
	_, err := g.breaker(operation, classify).Execute(func() (struct{}, error) {
		return struct{}{}, g.redeliver(ctx, operation, fn, classify)
	})
	return err
}

func (g *Guard) redeliver(ctx context.Context, operation string, fn func(context.Context) error, classify Classifier) error {
	retry := g.policy.Retry
	deadline := time.Now().Add(retry.Budget)

	var err error
	for attempt := 1; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err = fn(ctx); err == nil {
			return nil
		}
		if classify(err) != Retry {
			return err
		}
		if attempt >= retry.Attempts {
			break
		}
		wait := retry.delay(attempt)
		if time.Now().Add(wait).After(deadline) {
			g.policy.Logger.Warn("donation_retry_budget_spent",
				"operation", operation, "attempts", attempt, "budget", retry.Budget.String(), "error", err)
			return err
		}
		g.policy.Logger.Warn("donation_redelivery",
			"operation", operation, "attempt", attempt, "wait", wait.String(), "error", err)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	g.policy.Logger.Warn("donation_attempts_exhausted", "operation", operation, "attempts", retry.Attempts, "error", err)
	return err
}

func (g *Guard) breaker(operation string, classify Classifier) *gobreaker.CircuitBreaker[struct{}] {
	g.mu.Lock()
	defer g.mu.Unlock()
	if cb, ok := g.breakers[operation]; ok {
		return cb
	}

	b := g.policy.Breaker
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        operation,
		MaxRequests: b.HalfOpenCalls,
		Timeout:     b.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= b.MinRequests &&
				float64(counts.TotalFailures)/float64(counts.Requests) >= b.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || classify(err) == Reject
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.policy.Logger.Warn("donation_breaker_state", "operation", name, "from", from.String(), "to", to.String())
			if g.policy.OnStateChange != nil {
				g.policy.OnStateChange(name, to.String())
			}
		},
	})
	g.breakers[operation] = cb
	return cb
}

// BreakerOpen reports whether err came from a tripped breaker.
func BreakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// ClassifyDomain maps the domain error kinds: ErrTemporary and an open
// breaker are retried, ErrInvalidInput and cancellation are rejected.
func ClassifyDomain(err error) Disposition {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Reject
	case domain.IsKind(err, domain.ErrInvalidInput):
		return Reject
	case domain.IsKind(err, domain.ErrTemporary), BreakerOpen(err):
		return Retry
	default:
		return Fail
	}
}
