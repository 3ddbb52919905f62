package resilience

import (
	"log/slog"
	"time"
)

// RetryPolicy bounds redelivery of one donation. Budget caps the total time
// spent on a single donation, so later donations of the same session are
// not held back indefinitely behind a stuck one.
type RetryPolicy struct {
	Attempts   int
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Budget     time.Duration
}

// BreakerPolicy configures the per-operation circuit breaker.
type BreakerPolicy struct {
	Enabled       bool
	MinRequests   uint32
	FailureRatio  float64
	OpenFor       time.Duration
	HalfOpenCalls uint32
}

type Policy struct {
	Retry   RetryPolicy
	Breaker BreakerPolicy

	Logger *slog.Logger
	// OnStateChange receives the operation and its new breaker state.
	OnStateChange func(operation, state string)
}

func DefaultPolicy() Policy {
	return Policy{
		Retry: RetryPolicy{
			Attempts:   4,
			Initial:    50 * time.Millisecond,
			Max:        500 * time.Millisecond,
			Multiplier: 2,
			Budget:     2 * time.Second,
		},
		Breaker: BreakerPolicy{
			Enabled:       true,
			MinRequests:   20,
			FailureRatio:  0.5,
			OpenFor:       15 * time.Second,
			HalfOpenCalls: 2,
		},
	}
}

// delay returns the wait before the given retry (1 is the first retry).
func (r RetryPolicy) delay(retry int) time.Duration {
	d := float64(r.Initial)
	for i := 1; i < retry; i++ {
		d *= r.Multiplier
		if d >= float64(r.Max) {
			return r.Max
		}
	}
	if time.Duration(d) > r.Max {
		return r.Max
	}
	return time.Duration(d)
}

func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	r, b := &p.Retry, &p.Breaker

	if r.Attempts <= 0 {
		r.Attempts = def.Retry.Attempts
	}
	if r.Initial <= 0 {
		r.Initial = def.Retry.Initial
	}
	if r.Max < r.Initial {
		r.Max = max(def.Retry.Max, r.Initial)
	}
	if r.Multiplier < 1 {
		r.Multiplier = def.Retry.Multiplier
	}
	if r.Budget <= 0 {
		r.Budget = def.Retry.Budget
	}

	if b.MinRequests == 0 {
		b.MinRequests = def.Breaker.MinRequests
	}
	if b.FailureRatio <= 0 || b.FailureRatio > 1 {
		b.FailureRatio = def.Breaker.FailureRatio
	}
	if b.OpenFor <= 0 {
		b.OpenFor = def.Breaker.OpenFor
	}
	if b.HalfOpenCalls == 0 {
		b.HalfOpenCalls = def.Breaker.HalfOpenCalls
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	return p
}
