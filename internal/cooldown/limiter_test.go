package cooldown

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestLimiter(window time.Duration) (*Limiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	l := NewLimiter(window, testLogger())
	l.nowFunc = clock.Now
	return l, clock
}

func TestNewLimiter_DefaultWindow(t *testing.T) {
	l := NewLimiter(0, testLogger())
	assert.Equal(t, DefaultWindow, l.Window())
}

func TestTryAcquire_SecondCallWithinWindowRejected(t *testing.T) {
	l, clock := newTestLimiter(5 * time.Minute)

	assert.True(t, l.TryAcquire("user-1"))
	clock.Advance(4*time.Minute + 59*time.Second)
	assert.False(t, l.TryAcquire("user-1"))
}

func TestTryAcquire_AllowedAfterWindow(t *testing.T) {
	l, clock := newTestLimiter(5 * time.Minute)

	require.True(t, l.TryAcquire("user-1"))
	require.False(t, l.TryAcquire("user-1"))

	clock.Advance(5*time.Minute + time.Second)
	assert.True(t, l.TryAcquire("user-1"))
}

func TestTryAcquire_RejectionDoesNotExtendWindow(t *testing.T) {
	l, clock := newTestLimiter(5 * time.Minute)

	require.True(t, l.TryAcquire("user-1"))
	clock.Advance(3 * time.Minute)
	require.False(t, l.TryAcquire("user-1"))

	// Measured from the accepted call, not the rejected one.
	clock.Advance(2*time.Minute + time.Second)
	assert.True(t, l.TryAcquire("user-1"))
}

func TestTryAcquire_IdentitiesIndependent(t *testing.T) {
	l, _ := newTestLimiter(5 * time.Minute)

	assert.True(t, l.TryAcquire("user-1"))
	assert.True(t, l.TryAcquire("user-2"))
	assert.False(t, l.TryAcquire("user-1"))
	assert.Equal(t, 2, l.Len())
}

func TestPrune_RemovesOnlyStaleRecords(t *testing.T) {
	l, clock := newTestLimiter(5 * time.Minute)

	require.True(t, l.TryAcquire("old"))
	clock.Advance(8 * time.Minute)
	require.True(t, l.TryAcquire("recent"))
	clock.Advance(3 * time.Minute)

	assert.Equal(t, 1, l.Prune())
	assert.Equal(t, 1, l.Len())

	// A pruned identity starts fresh.
	assert.True(t, l.TryAcquire("old"))
}

func TestRunCleanup_StopsOnCancel(t *testing.T) {
	l, _ := newTestLimiter(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- l.RunCleanup(ctx, time.Millisecond) }()

	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("RunCleanup did not stop after cancel")
	}
}
