package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errBoom = errors.New("boom")

func newTestBreaker(maxFailures int, timeout time.Duration) (*CircuitBreaker, *time.Time) {
	now := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreakerWithWindow(maxFailures, timeout, time.Minute)
	cb.now = func() time.Time { return now }
	return cb, &now
}

func TestOpensAfterTooManyFailures(t *testing.T) {
	cb, _ := newTestBreaker(2, 10*time.Second)
	fail := func() error { return errBoom }

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(fail), errBoom)
	}
	assert.Equal(t, StateOpen, cb.GetState())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestHalfOpenProbeCloses(t *testing.T) {
	cb, now := newTestBreaker(0, 10*time.Second)
	assert.Error(t, cb.Execute(func() error { return errBoom }))
	assert.Equal(t, StateOpen, cb.GetState())

	*now = now.Add(11 * time.Second)
	assert.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestHalfOpenProbeFailureReopens(t *testing.T) {
	cb, now := newTestBreaker(0, 10*time.Second)
	assert.Error(t, cb.Execute(func() error { return errBoom }))

	*now = now.Add(11 * time.Second)
	assert.ErrorIs(t, cb.Execute(func() error { return errBoom }), errBoom)
	assert.Equal(t, StateOpen, cb.GetState())
}

func TestFailuresOutsideWindowAreForgotten(t *testing.T) {
	cb, now := newTestBreaker(1, 10*time.Second)
	assert.Error(t, cb.Execute(func() error { return errBoom }))

	*now = now.Add(2 * time.Minute)
	assert.Error(t, cb.Execute(func() error { return errBoom }))
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
}
