package verification

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/emperorhan/holder-gate/internal/chain/mocks"
	"github.com/emperorhan/holder-gate/internal/challenge"
	"github.com/emperorhan/holder-gate/internal/domain/model"
	"github.com/emperorhan/holder-gate/internal/reconciliation"
	"github.com/emperorhan/holder-gate/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type fakeReconciler struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeReconciler) Reconcile(_ context.Context, identity, guildID string) (*reconciliation.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, identity+"@"+guildID)
	if f.err != nil {
		return nil, f.err
	}
	return &reconciliation.Result{Identity: identity, GuildID: guildID}, nil
}

type recordingCache struct {
	mu          sync.Mutex
	invalidated []string
}

func (c *recordingCache) Invalidate(address string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, address)
}

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

type queueFixture struct {
	q          *Queue
	observer   *mocks.MockTransactionObserver
	holders    *memory.HolderRepo
	reconciler *fakeReconciler
	clock      *fakeClock
}

func newQueueFixture(t *testing.T) *queueFixture {
	t.Helper()
	return newQueueFixtureWithConfig(t, Config{})
}

func newQueueFixtureWithConfig(t *testing.T, cfg Config) *queueFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &queueFixture{
		observer:   mocks.NewMockTransactionObserver(ctrl),
		holders:    memory.NewHolderRepo(),
		reconciler: &fakeReconciler{},
		clock:      &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.q = NewQueue(cfg, f.observer, f.holders, f.reconciler, challenge.NewSeededGenerator(1, 2), logger)
	f.q.nowFunc = f.clock.Now
	return f
}

func TestQueue_StartReplacesPriorAttempt(t *testing.T) {
	f := newQueueFixture(t)

	first := f.q.Start("user-1", "guild-1", "addr1a")
	f.clock.Advance(time.Second)
	second := f.q.Start("user-1", "guild-1", "addr1b")

	assert.Equal(t, 1, f.q.Len())
	got, ok := f.q.Get("user-1")
	require.True(t, ok)
	assert.Equal(t, second, got)
	assert.NotEqual(t, first.Address, got.Address)
}

func TestQueue_MatchCreatesHolderAndReconciles(t *testing.T) {
	f := newQueueFixture(t)
	a := f.q.Start("user-1", "guild-1", "addr1a")

	f.observer.EXPECT().LatestSelfTransfer(gomock.Any(), "addr1a").Return(a.Challenge, true, nil)

	res := f.q.Poll(context.Background())
	assert.Equal(t, 1, res.Matched)
	assert.Zero(t, f.q.Len())

	h, ok := f.holders.Get("user-1")
	require.True(t, ok)
	assert.Equal(t, "addr1a", h.Address)
	assert.Empty(t, h.AssignedRoleIDs)
	assert.Equal(t, []string{"user-1@guild-1"}, f.reconciler.calls)
}

func TestQueue_MatchInvalidatesCachedHoldings(t *testing.T) {
	cache := &recordingCache{}
	f := newQueueFixtureWithConfig(t, Config{Cache: cache})
	a := f.q.Start("user-1", "guild-1", "addr1a")
	b := f.q.Start("user-2", "guild-1", "addr1b")

	f.observer.EXPECT().LatestSelfTransfer(gomock.Any(), "addr1a").Return(a.Challenge, true, nil)
	f.observer.EXPECT().LatestSelfTransfer(gomock.Any(), "addr1b").Return(b.Challenge+1, true, nil)

	f.q.Poll(context.Background())
	assert.Equal(t, []string{"addr1a"}, cache.invalidated)
}

func TestQueue_HungLookupIsBoundedAndIsolated(t *testing.T) {
	f := newQueueFixtureWithConfig(t, Config{LookupTimeout: 50 * time.Millisecond})
	f.q.Start("user-hung", "guild-1", "addr1hung")
	ok := f.q.Start("user-ok", "guild-1", "addr1ok")

	f.observer.EXPECT().LatestSelfTransfer(gomock.Any(), "addr1hung").DoAndReturn(
		func(ctx context.Context, _ string) (model.Amount, bool, error) {
			<-ctx.Done()
			return 0, false, ctx.Err()
		})
	f.observer.EXPECT().LatestSelfTransfer(gomock.Any(), "addr1ok").Return(ok.Challenge, true, nil)

	start := time.Now()
	res := f.q.Poll(context.Background())
	assert.Less(t, time.Since(start), 2*time.Second)

	assert.Equal(t, 2, res.Checked)
	assert.Equal(t, 1, res.Matched)
	assert.Equal(t, 1, res.Errors)
	_, verified := f.holders.Get("user-ok")
	assert.True(t, verified)
	_, pending := f.q.Get("user-hung")
	assert.True(t, pending)
}

func TestQueue_MismatchStaysPending(t *testing.T) {
	f := newQueueFixture(t)
	a := f.q.Start("user-1", "guild-1", "addr1a")

	f.observer.EXPECT().LatestSelfTransfer(gomock.Any(), "addr1a").Return(a.Challenge+1, true, nil)

	res := f.q.Poll(context.Background())
	assert.Zero(t, res.Matched)
	assert.Equal(t, 1, f.q.Len())
	_, ok := f.holders.Get("user-1")
	assert.False(t, ok)
}

func TestQueue_LookupErrorIsNoMatch(t *testing.T) {
	f := newQueueFixture(t)
	f.q.Start("user-1", "guild-1", "addr1a")
	b := f.q.Start("user-2", "guild-1", "addr1b")

	f.observer.EXPECT().LatestSelfTransfer(gomock.Any(), "addr1a").Return(model.Amount(0), false, errors.New("cardanoscan: 503"))
	f.observer.EXPECT().LatestSelfTransfer(gomock.Any(), "addr1b").Return(b.Challenge, true, nil)

	res := f.q.Poll(context.Background())
	assert.Equal(t, 1, res.Errors)
	assert.Equal(t, 1, res.Matched)
	_, pending := f.q.Get("user-1")
	assert.True(t, pending, "failed lookup must not expire the attempt")
}

func TestQueue_ExpiresExactlyAtTimeout(t *testing.T) {
	f := newQueueFixture(t)
	f.q.Start("user-1", "guild-1", "addr1a")

	f.clock.Advance(DefaultTimeout - time.Nanosecond)
	f.observer.EXPECT().LatestSelfTransfer(gomock.Any(), "addr1a").Return(model.Amount(0), false, nil)
	res := f.q.Poll(context.Background())
	assert.Zero(t, res.Expired)
	assert.Equal(t, 1, f.q.Len())

	f.clock.Advance(time.Nanosecond)
	res = f.q.Poll(context.Background())
	assert.Equal(t, 1, res.Expired)
	assert.Zero(t, f.q.Len())
	assert.Zero(t, f.holders.Len())
	assert.Empty(t, f.reconciler.calls)
}

func TestQueue_ReplacedDuringLookupIsNotRemoved(t *testing.T) {
	f := newQueueFixture(t)
	a := f.q.Start("user-1", "guild-1", "addr1a")

	var replacement model.VerificationAttempt
	f.observer.EXPECT().LatestSelfTransfer(gomock.Any(), "addr1a").DoAndReturn(
		func(context.Context, string) (model.Amount, bool, error) {
			f.clock.Advance(time.Second)
			replacement = f.q.Start("user-1", "guild-1", "addr1a")
			return a.Challenge, true, nil
		})

	res := f.q.Poll(context.Background())
	assert.Zero(t, res.Matched)
	got, ok := f.q.Get("user-1")
	require.True(t, ok)
	assert.Equal(t, replacement, got)
	assert.Zero(t, f.holders.Len())
}

func TestQueue_ReconcileFailureStillVerifies(t *testing.T) {
	f := newQueueFixture(t)
	f.reconciler.err = errors.New("member not found")
	a := f.q.Start("user-1", "guild-1", "addr1a")
	f.observer.EXPECT().LatestSelfTransfer(gomock.Any(), "addr1a").Return(a.Challenge, true, nil)

	res := f.q.Poll(context.Background())
	assert.Equal(t, 1, res.Matched)
	assert.Equal(t, 1, f.holders.Len())
}

func TestQueue_RunPeriodicStopsOnCancel(t *testing.T) {
	f := newQueueFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, f.q.RunPeriodic(ctx, time.Hour), context.Canceled)
}
