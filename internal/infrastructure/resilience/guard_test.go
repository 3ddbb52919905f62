package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/d3i-infra/port-google-home/internal/core/domain"
)

func fastRetry(attempts int) RetryPolicy {
	return RetryPolicy{Attempts: attempts, Initial: time.Millisecond, Max: 2 * time.Millisecond, Multiplier: 2, Budget: time.Second}
}

func TestDeliverRedeliversTransientFailure(t *testing.T) {
	guard := NewGuard(Policy{Retry: fastRetry(3)})

	attempts := 0
	err := guard.Deliver(context.Background(), "nats.publish", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return domain.WrapError(domain.ErrTemporary, "publish", errors.New("slow consumer"))
		}
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("expected delivery after redelivery, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestDeliverStopsOnPermanentAndRejected(t *testing.T) {
	tests := []struct {
		name        string
		disposition Disposition
	}{
		{name: "permanent", disposition: Fail},
		{name: "rejected", disposition: Reject},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			guard := NewGuard(Policy{Retry: fastRetry(5)})
			errBad := errors.New("bad donation")
			attempts := 0
			err := guard.Deliver(context.Background(), "postgres.save_donation", func(context.Context) error {
				attempts++
				return errBad
			}, func(error) Disposition { return tc.disposition })
			if !errors.Is(err, errBad) || attempts != 1 {
				t.Fatalf("expected one attempt returning errBad, got %d attempts err=%v", attempts, err)
			}
		})
	}
}

func TestDeliverRespectsRetryBudget(t *testing.T) {
	guard := NewGuard(Policy{Retry: RetryPolicy{
		Attempts:   10,
		Initial:    50 * time.Millisecond,
		Max:        50 * time.Millisecond,
		Multiplier: 1,
		Budget:     10 * time.Millisecond,
	}})

	attempts := 0
	start := time.Now()
	err := guard.Deliver(context.Background(), "nats.publish", func(context.Context) error {
		attempts++
		return domain.WrapError(domain.ErrTemporary, "publish", errors.New("reconnect buffer full"))
	}, nil)
	if err == nil {
		t.Fatalf("expected failure once the budget is spent")
	}
	if attempts != 1 {
		t.Fatalf("expected the budget to stop redelivery after 1 attempt, got %d", attempts)
	}
	if elapsed := time.Since(start); elapsed > 40*time.Millisecond {
		t.Fatalf("delivery waited %s past its budget", elapsed)
	}
}

func TestDeliverTripsBreakerOnRepeatedFailure(t *testing.T) {
	guard := NewGuard(Policy{
		Retry:   fastRetry(1),
		Breaker: BreakerPolicy{Enabled: true, MinRequests: 2, FailureRatio: 0.5, OpenFor: time.Minute, HalfOpenCalls: 1},
	})

	errDown := errors.New("connection refused")
	for i := 0; i < 2; i++ {
		if err := guard.Deliver(context.Background(), "nats.publish", func(context.Context) error {
			return errDown
		}, nil); !errors.Is(err, errDown) {
			t.Fatalf("attempt %d: expected errDown, got %v", i, err)
		}
	}

	err := guard.Deliver(context.Background(), "nats.publish", func(context.Context) error {
		t.Fatalf("open breaker must not deliver")
		return nil
	}, nil)
	if !errors.Is(err, gobreaker.ErrOpenState) || !BreakerOpen(err) {
		t.Fatalf("expected open breaker, got %v", err)
	}
}

func TestRejectedDonationsDoNotTripBreaker(t *testing.T) {
	guard := NewGuard(Policy{
		Retry:   fastRetry(1),
		Breaker: BreakerPolicy{Enabled: true, MinRequests: 1, FailureRatio: 0.1, OpenFor: time.Minute, HalfOpenCalls: 1},
	})

	for i := 0; i < 5; i++ {
		_ = guard.Deliver(context.Background(), "postgres.save_donation", func(context.Context) error {
			return domain.WrapError(domain.ErrInvalidInput, "record donation", errors.New("empty key"))
		}, nil)
	}
	called := false
	if err := guard.Deliver(context.Background(), "postgres.save_donation", func(context.Context) error {
		called = true
		return nil
	}, nil); err != nil || !called {
		t.Fatalf("expected breaker to stay closed, called=%v err=%v", called, err)
	}
}

func TestDeliverReportsBreakerStateChanges(t *testing.T) {
	var changes []string
	guard := NewGuard(Policy{
		Retry:   fastRetry(1),
		Breaker: BreakerPolicy{Enabled: true, MinRequests: 1, FailureRatio: 0.5, OpenFor: time.Minute, HalfOpenCalls: 1},
		OnStateChange: func(operation, state string) {
			changes = append(changes, operation+":"+state)
		},
	})

	_ = guard.Deliver(context.Background(), "postgres.save_donation", func(context.Context) error {
		return errors.New("down")
	}, nil)

	if len(changes) != 1 || changes[0] != "postgres.save_donation:open" {
		t.Fatalf("unexpected state changes %v", changes)
	}
}

func TestClassifyDomain(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Disposition
	}{
		{name: "temporary", err: domain.WrapError(domain.ErrTemporary, "publish", errors.New("no servers")), want: Retry},
		{name: "invalid input", err: domain.WrapError(domain.ErrInvalidInput, "record", errors.New("empty key")), want: Reject},
		{name: "canceled", err: context.Canceled, want: Reject},
		{name: "open breaker", err: gobreaker.ErrOpenState, want: Retry},
		{name: "other", err: errors.New("constraint violation"), want: Fail},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyDomain(tc.err); got != tc.want {
				t.Fatalf("ClassifyDomain(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}

func TestRetryDelayGrowsToMax(t *testing.T) {
	r := RetryPolicy{Initial: 10 * time.Millisecond, Max: 35 * time.Millisecond, Multiplier: 2}
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 35 * time.Millisecond, 35 * time.Millisecond}
	for i, w := range want {
		if got := r.delay(i + 1); got != w {
			t.Fatalf("delay(%d) = %s, want %s", i+1, got, w)
		}
	}
}

func TestPolicyDefaults(t *testing.T) {
	p := Policy{Retry: RetryPolicy{Initial: time.Second}}.withDefaults()
	if p.Retry.Attempts != 4 || p.Retry.Budget != 2*time.Second {
		t.Fatalf("unexpected retry defaults %+v", p.Retry)
	}
	if p.Retry.Max != time.Second {
		t.Fatalf("max backoff must not be below initial, got %s", p.Retry.Max)
	}
	if p.Breaker.MinRequests != 20 || p.Breaker.HalfOpenCalls != 2 {
		t.Fatalf("unexpected breaker defaults %+v", p.Breaker)
	}
}
