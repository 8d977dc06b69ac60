package amqp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accountbook/internal/core"
)

type stubPublisher struct {
	err   error
	calls int
}

func (s *stubPublisher) PublishTransactionGenerated(context.Context, string, core.Transaction) error {
	s.calls++
	return s.err
}

func testBreakerSettings() BreakerSettings {
	s := DefaultBreakerSettings()
	s.MinRequests = 3
	s.FailureRatio = 1
	s.Timeout = time.Hour
	return s
}

func TestBreakerPublisherPassesThrough(t *testing.T) {
	stub := &stubPublisher{}
	p := NewBreakerPublisher(stub, testBreakerSettings())

	require.NoError(t, p.PublishTransactionGenerated(context.Background(), "run", sampleTransaction()))
	assert.Equal(t, 1, stub.calls)
	assert.Equal(t, gobreaker.StateClosed, p.State())
}

func TestBreakerPublisherOpensAfterFailures(t *testing.T) {
	stub := &stubPublisher{err: errors.New("connection refused")}
	p := NewBreakerPublisher(stub, testBreakerSettings())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := p.PublishTransactionGenerated(ctx, "run", sampleTransaction())
		assert.EqualError(t, err, "connection refused")
	}
	assert.Equal(t, gobreaker.StateOpen, p.State())

	err := p.PublishTransactionGenerated(ctx, "run", sampleTransaction())
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 3, stub.calls, "open breaker must not reach the broker")
}

func TestBreakerPublisherIgnoresCancellation(t *testing.T) {
	stub := &stubPublisher{}
	p := NewBreakerPublisher(stub, testBreakerSettings())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, p.PublishTransactionGenerated(ctx, "run", sampleTransaction()), context.Canceled)
	}
	assert.Zero(t, stub.calls)
	assert.Equal(t, gobreaker.StateClosed, p.State())
}
