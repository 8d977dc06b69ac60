package amqp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"accountbook/internal/core"
	applog "accountbook/internal/log"
)

// Publisher is what BreakerPublisher guards; *Client implements it.
type Publisher interface {
	PublishTransactionGenerated(ctx context.Context, runID string, tx core.Transaction) error
}

// ErrCircuitOpen is returned while the breaker refuses to call the broker.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerSettings tunes the circuit breaker in front of the broker.
type BreakerSettings struct {
	// MaxRequests may pass while half-open.
	MaxRequests uint32
	// Interval resets the failure counts while closed.
	Interval time.Duration
	// Timeout is how long the breaker stays open.
	Timeout time.Duration
	// MinRequests and FailureRatio decide when a closed breaker trips.
	MinRequests  uint32
	FailureRatio float64
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:  3,
		Interval:     30 * time.Second,
		Timeout:      10 * time.Second,
		MinRequests:  5,
		FailureRatio: 0.6,
	}
}

// BreakerPublisher stops calling a broker that keeps failing, so a pass
// with many transactions does not wait on a dead connection for each one.
type BreakerPublisher struct {
	next    Publisher
	breaker *gobreaker.CircuitBreaker
}

func NewBreakerPublisher(next Publisher, settings BreakerSettings) *BreakerPublisher {
	logger := applog.Default().WithComponent(applog.ComponentAMQP)
	return &BreakerPublisher{
		next: next,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "amqp-publisher",
			MaxRequests: settings.MaxRequests,
			Interval:    settings.Interval,
			Timeout:     settings.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= settings.MinRequests && failureRatio >= settings.FailureRatio
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("Circuit breaker state changed",
					"breaker", name,
					"from", from.String(),
					"to", to.String())
			},
			// A cancelled pass says nothing about the broker.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
		}),
	}
}

func (p *BreakerPublisher) PublishTransactionGenerated(ctx context.Context, runID string, tx core.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.breaker.Execute(func() (interface{}, error) {
		return nil, p.next.PublishTransactionGenerated(ctx, runID, tx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", ErrCircuitOpen, err)
	}
	return err
}

// State reports the breaker state, e.g. for health output.
func (p *BreakerPublisher) State() gobreaker.State {
	return p.breaker.State()
}
