package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

func TestWindowBucketDelay(t *testing.T) {
	t.Parallel()

	b := NewBucket(Rate{Count: 2, Per: time.Second}, RefillWindow)
	require.Zero(t, b.Delay(t0))
	b.Take(t0)
	b.Take(t0.Add(300 * time.Millisecond))

	require.Equal(t, 600*time.Millisecond, b.Delay(t0.Add(400*time.Millisecond)))
	// The first token returns exactly one interval after it was taken.
	require.Zero(t, b.Delay(t0.Add(time.Second)))
	b.Take(t0.Add(time.Second))
	require.Equal(t, 300*time.Millisecond, b.Delay(t0.Add(time.Second)))
}

func TestWindowBucketNeverExceedsCountInRollingWindow(t *testing.T) {
	t.Parallel()

	r := Rate{Count: 3, Per: time.Second}
	b := NewBucket(r, RefillWindow)
	var admitted []time.Time
	for now := t0; now.Before(t0.Add(5 * time.Second)); now = now.Add(50 * time.Millisecond) {
		for b.Delay(now) == 0 {
			b.Take(now)
			admitted = append(admitted, now)
		}
	}
	require.NotEmpty(t, admitted)
	for i := range admitted {
		inWindow := 0
		for _, ts := range admitted[i:] {
			if ts.Sub(admitted[i]) < r.Per {
				inWindow++
			}
		}
		require.LessOrEqual(t, inWindow, r.Count, "window starting at %s", admitted[i])
	}
}

func TestSmoothBucketRefillsContinuously(t *testing.T) {
	t.Parallel()

	b := NewBucket(Rate{Count: 2, Per: time.Second}, RefillSmooth)
	b.Take(t0)
	b.Take(t0)
	require.Equal(t, 500*time.Millisecond, b.Delay(t0))
	require.Equal(t, 250*time.Millisecond, b.Delay(t0.Add(250*time.Millisecond)))
	require.Zero(t, b.Delay(t0.Add(500*time.Millisecond)))
}

func TestNewBucketDefaultsToWindow(t *testing.T) {
	t.Parallel()

	_, ok := NewBucket(Rate{Count: 1, Per: time.Second}, "").(*windowBucket)
	require.True(t, ok)
	_, ok = NewBucket(Rate{Count: 1, Per: time.Second}, RefillSmooth).(*smoothBucket)
	require.True(t, ok)
}

func TestBucketIdle(t *testing.T) {
	t.Parallel()

	window := NewBucket(Rate{Count: 2, Per: time.Second}, RefillWindow)
	require.True(t, window.Idle(t0))
	window.Take(t0)
	require.False(t, window.Idle(t0.Add(999*time.Millisecond)))
	require.True(t, window.Idle(t0.Add(time.Second)))

	smooth := NewBucket(Rate{Count: 2, Per: time.Second}, RefillSmooth)
	require.True(t, smooth.Idle(t0))
	smooth.Take(t0)
	require.False(t, smooth.Idle(t0.Add(250*time.Millisecond)))
	require.True(t, smooth.Idle(t0.Add(500*time.Millisecond)))
}
