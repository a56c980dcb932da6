// Package resilience guards provider calls with timeouts and circuit breakers.
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Config holds configuration for a provider guard
type Config struct {
	Name        string
	CallTimeout time.Duration
	MaxRequests uint32
	Interval    time.Duration
	OpenTimeout time.Duration
	// Trip once at least MinRequests were seen and the failure ratio reaches FailureThreshold
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultConfig returns the default configuration for a named provider
func DefaultConfig(name string, callTimeout time.Duration) Config {
	return Config{
		Name:             name,
		CallTimeout:      callTimeout,
		MaxRequests:      3,
		Interval:         30 * time.Second,
		OpenTimeout:      30 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// Guard wraps one external provider
type Guard struct {
	name    string
	timeout time.Duration
	cb      *gobreaker.CircuitBreaker
}

// NewGuard creates a guard. onStateChange may be nil.
func NewGuard(cfg Config, logger *zap.Logger, onStateChange func(name string, to string)) *Guard {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("provider", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			if onStateChange != nil {
				onStateChange(name, to.String())
			}
		},
		IsSuccessful: func(err error) bool {
			// A caller that gave up says nothing about provider health.
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &Guard{
		name:    cfg.Name,
		timeout: cfg.CallTimeout,
		cb:      cb,
	}
}

func (g *Guard) Name() string { return g.name }

// State reports the breaker state as closed, half-open or open.
func (g *Guard) State() string { return g.cb.State().String() }

// Call runs fn under the guard's timeout and breaker. When the breaker is
// open fn is not invoked and ErrOpen is returned.
func Call[T any](ctx context.Context, g *Guard, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	result, err := g.cb.Execute(func() (interface{}, error) {
		callCtx := ctx
		if g.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}
		return fn(callCtx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, ErrOpen
		}
		return zero, err
	}

	value, _ := result.(T)
	return value, nil
}

// ErrOpen is returned while a provider's breaker rejects calls
var ErrOpen = errors.New("provider temporarily unavailable")
