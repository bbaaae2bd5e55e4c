package enrich

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drainBackoff(p RetryPolicy) []time.Duration {
	b := p.Backoff()
	var delays []time.Duration
	for i := 0; i < 100; i++ {
		d, stop := b.Next()
		if stop {
			break
		}
		delays = append(delays, d)
	}
	return delays
}

func TestDefaultRetryPolicySequence(t *testing.T) {
	assert.Equal(t, []time.Duration{12 * time.Second, 14 * time.Second, 16 * time.Second}, drainBackoff(DefaultRetryPolicy()))
}

func TestRetryPolicyBackoffIsFreshPerCall(t *testing.T) {
	p := DefaultRetryPolicy()
	first := drainBackoff(p)
	second := drainBackoff(p)
	assert.Equal(t, first, second)
}

func TestRetryPolicyNoRetries(t *testing.T) {
	assert.Empty(t, drainBackoff(RetryPolicy{MaxRetries: 0, BaseDelay: time.Second}))
	assert.Empty(t, drainBackoff(RetryPolicy{MaxRetries: -2, BaseDelay: time.Second}))
}

func TestRetryPolicyDelay(t *testing.T) {
	p := RetryPolicy{MaxRetries: 5, BaseDelay: time.Second, Step: 500 * time.Millisecond}
	assert.Equal(t, time.Second, p.Delay(-1))
	assert.Equal(t, time.Second, p.Delay(0))
	assert.Equal(t, 2*time.Second, p.Delay(2))
}

func TestVirtualClock(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewVirtualClock(start)
	require.NoError(t, c.Sleep(context.Background(), 4*time.Second))
	c.Advance(time.Second)
	assert.Equal(t, start.Add(5*time.Second), c.Now())
	assert.Equal(t, []time.Duration{4 * time.Second}, c.Sleeps())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Sleep(ctx, time.Second), context.Canceled)
	assert.Len(t, c.Sleeps(), 1)
}

func TestRealClockSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, RealClock().Sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, RealClock().Sleep(context.Background(), time.Millisecond))
}

func TestInFlight(t *testing.T) {
	f := NewInFlight()
	assert.True(t, f.Acquire("a"))
	assert.False(t, f.Acquire("a"))
	assert.True(t, f.Contains("a"))
	f.Release("a")
	assert.False(t, f.Contains("a"))
	assert.True(t, f.Acquire("a"))
}

func TestBroadcasterDropsForSlowSubscriber(t *testing.T) {
	b := newBroadcaster()
	ch, cancel := b.subscribe(1)
	b.publish(Progress{Completed: 1})
	b.publish(Progress{Completed: 2})

	got := <-ch
	assert.Equal(t, 1, got.Completed)
	cancel()
	_, open := <-ch
	assert.False(t, open)
	b.publish(Progress{Completed: 3})
}
