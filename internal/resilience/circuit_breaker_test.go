// SPDX-License-Identifier: MIT

package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockClock struct {
	now time.Time
}

func (m *mockClock) Now() time.Time { return m.now }

var errBoom = errors.New("boom")

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	clock := &mockClock{now: time.Now()}
	cb := NewCircuitBreaker("test", 3, 30*time.Second, WithClock(clock))

	for i := 0; i < 3; i++ {
		err := cb.Execute(func() error { return errBoom })
		assert.ErrorIs(t, err, errBoom)
	}
	assert.Equal(t, StateOpen, cb.State())

	// While open, calls are rejected without invoking fn.
	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_HalfOpenProbeRecovers(t *testing.T) {
	clock := &mockClock{now: time.Now()}
	cb := NewCircuitBreaker("test", 1, 10*time.Second, WithClock(clock))

	require.Error(t, cb.Execute(func() error { return errBoom }))
	require.Equal(t, StateOpen, cb.State())

	clock.now = clock.now.Add(11 * time.Second)

	// Probe succeeds, breaker closes.
	assert.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenProbeFailsReopens(t *testing.T) {
	clock := &mockClock{now: time.Now()}
	cb := NewCircuitBreaker("test", 1, 10*time.Second, WithClock(clock))

	require.Error(t, cb.Execute(func() error { return errBoom }))
	clock.now = clock.now.Add(11 * time.Second)

	assert.ErrorIs(t, cb.Execute(func() error { return errBoom }), errBoom)
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, 30*time.Second)

	require.Error(t, cb.Execute(func() error { return errBoom }))
	require.Error(t, cb.Execute(func() error { return errBoom }))
	require.NoError(t, cb.Execute(func() error { return nil }))

	// Two more failures must not trip a threshold of three.
	require.Error(t, cb.Execute(func() error { return errBoom }))
	require.Error(t, cb.Execute(func() error { return errBoom }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_RetryAfter(t *testing.T) {
	clock := &mockClock{now: time.Now()}
	cb := NewCircuitBreaker("test", 1, 30*time.Second, WithClock(clock))

	assert.Zero(t, cb.RetryAfter())

	require.Error(t, cb.Execute(func() error { return errBoom }))
	clock.now = clock.now.Add(10 * time.Second)

	assert.Equal(t, 20*time.Second, cb.RetryAfter())
}
