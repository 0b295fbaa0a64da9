package expiry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_EmptyIsAbsent(t *testing.T) {
	v := New[string]()
	_, ok := v.Get()
	assert.False(t, ok)
}

func TestValue_SetAndGet(t *testing.T) {
	now := time.Now()
	v := NewWithClock[int](func() time.Time { return now })

	v.Set(42, time.Minute)
	got, ok := v.Get()
	require.True(t, ok)
	assert.Equal(t, 42, got)
}

func TestValue_ExpiredIsAbsent(t *testing.T) {
	now := time.Now()
	v := NewWithClock[int](func() time.Time { return now })

	v.Set(42, time.Minute)
	now = now.Add(time.Minute) // exactly at the deadline

	_, ok := v.Get()
	assert.False(t, ok, "value at its deadline must be treated as absent")
}

func TestValue_Invalidate(t *testing.T) {
	v := New[int]()
	v.Set(1, time.Hour)
	v.Invalidate()
	_, ok := v.Get()
	assert.False(t, ok)
}

func TestValue_GetOrCompute(t *testing.T) {
	now := time.Now()
	v := NewWithClock[int](func() time.Time { return now })

	calls := 0
	compute := func() (int, error) {
		calls++
		return calls, nil
	}

	got, err := v.GetOrCompute(time.Minute, compute)
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	// Fresh: compute must not run again.
	got, err = v.GetOrCompute(time.Minute, compute)
	require.NoError(t, err)
	assert.Equal(t, 1, got)
	assert.Equal(t, 1, calls)

	// Expired: compute runs again.
	now = now.Add(2 * time.Minute)
	got, err = v.GetOrCompute(time.Minute, compute)
	require.NoError(t, err)
	assert.Equal(t, 2, got)
}

func TestValue_GetOrComputeErrorNotCached(t *testing.T) {
	v := New[int]()
	wantErr := errors.New("probe unavailable")

	_, err := v.GetOrCompute(time.Minute, func() (int, error) { return 0, wantErr })
	assert.ErrorIs(t, err, wantErr)

	_, ok := v.Get()
	assert.False(t, ok)
}
