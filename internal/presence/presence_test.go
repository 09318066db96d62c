package presence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/npezzotti/anon-chat/internal/stats"
	"github.com/npezzotti/anon-chat/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestTracker(t *testing.T) (*Tracker, *fakeClock, *stats.MockStatsUpdater) {
	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", MetricOnlineUsers).Once()
	su.On("Incr", MetricOnlineUsers).Maybe()
	su.On("Decr", MetricOnlineUsers).Maybe()

	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	tr := NewTracker(testutil.TestLogger(t), su, 30*time.Second)
	tr.now = clock.Now

	go tr.Run()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		assert.NoError(t, tr.Shutdown(ctx))
	})
	return tr, clock, su
}

func TestTracker_Count(t *testing.T) {
	ctx := context.Background()
	tr, clock, su := newTestTracker(t)

	require.NoError(t, tr.Seen(ctx, "lobby", "user_a"))
	require.NoError(t, tr.Seen(ctx, "lobby", "user_b"))
	require.NoError(t, tr.Seen(ctx, "lobby", "user_a"))
	require.NoError(t, tr.Seen(ctx, "other", "user_c"))
	require.NoError(t, tr.Seen(ctx, "lobby", ""))

	n, err := tr.Count(ctx, "lobby")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "expected distinct ids only")

	n, err = tr.Count(ctx, "empty")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	clock.Advance(20 * time.Second)
	require.NoError(t, tr.Seen(ctx, "lobby", "user_b"))
	clock.Advance(15 * time.Second)

	n, err = tr.Count(ctx, "lobby")
	require.NoError(t, err)
	assert.Equal(t, 1, n, "expected user_a to have expired")

	su.AssertNumberOfCalls(t, "Incr", 3)
	su.AssertNumberOfCalls(t, "Decr", 1)
}

func TestTracker_Forget(t *testing.T) {
	ctx := context.Background()
	tr, _, _ := newTestTracker(t)

	require.NoError(t, tr.Seen(ctx, "lobby", "user_a"))
	require.NoError(t, tr.Forget(ctx, "lobby"))

	n, err := tr.Count(ctx, "lobby")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestTracker_Shutdown(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything)
	tr := NewTracker(testutil.TestLogger(t), su, time.Minute)

	t.Run("times out when not running", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, tr.Shutdown(ctx), context.DeadlineExceeded)
	})

	t.Run("stops run loop", func(t *testing.T) {
		go tr.Run()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, tr.Shutdown(ctx))

		assert.ErrorIs(t, tr.Seen(ctx, "lobby", "user_a"), ErrStopped)
		_, err := tr.Count(ctx, "lobby")
		assert.ErrorIs(t, err, ErrStopped)
		assert.NoError(t, tr.Shutdown(ctx), "expected repeated shutdown to be a no-op")
	})
}
