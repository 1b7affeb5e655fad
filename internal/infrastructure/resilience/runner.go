package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Outcome tells the runner how to treat one failure: whether another attempt
// makes sense and whether the breaker should count it.
type Outcome struct {
	Retry           bool
	CountsAsFailure bool
}

type Classify func(err error) Outcome

// Runner wraps calls to an external dependency with bounded exponential retry
// and a per-operation circuit breaker.
type Runner struct {
	policy Policy

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

func NewRunner(policy Policy) *Runner {
	return &Runner{
		policy:   policy.normalize(),
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

func (r *Runner) Do(ctx context.Context, operation string, fn func(context.Context) error, classify Classify) error {
	if fn == nil {
		return fmt.Errorf("resilience: nil operation for %q", operation)
	}
	if classify == nil {
		classify = func(error) Outcome { return Outcome{CountsAsFailure: true} }
	}

	if !r.policy.BreakerEnabled {
		return r.retry(ctx, operation, fn, classify)
	}

	breaker := r.breaker(operation, classify)
	_, err := breaker.Execute(func() (any, error) {
		return nil, r.retry(ctx, operation, fn, classify)
	})
	return err
}

func (r *Runner) retry(ctx context.Context, operation string, fn func(context.Context) error, classify Classify) error {
	backoff := r.policy.InitialBackoff

	var err error
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !classify(err).Retry || attempt == r.policy.MaxAttempts {
			return err
		}

		slog.Warn("retry_attempt",
			"operation", operation,
			"attempt", attempt,
			"backoff", backoff.String(),
			"error", err,
		)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}

		backoff = time.Duration(float64(backoff) * r.policy.Multiplier)
		if backoff > r.policy.MaxBackoff {
			backoff = r.policy.MaxBackoff
		}
	}
	return err
}

func (r *Runner) breaker(operation string, classify Classify) *gobreaker.CircuitBreaker[any] {
	r.mu.Lock()
	defer r.mu.Unlock()

	if breaker, ok := r.breakers[operation]; ok {
		return breaker
	}

	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        operation,
		MaxRequests: r.policy.BreakerHalfOpenCalls,
		Timeout:     r.policy.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < r.policy.BreakerMinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= r.policy.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !classify(err).CountsAsFailure
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit_breaker_state_change", "operation", name, "from", from.String(), "to", to.String())
		},
	})
	r.breakers[operation] = breaker
	return breaker
}

// CircuitOpen reports whether the error came from an open or saturated
// breaker rather than the wrapped operation itself.
func CircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
