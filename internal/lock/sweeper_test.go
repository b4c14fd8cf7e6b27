package lock_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/quotedesk/internal/lock"
)

func TestNewSweeper_Validation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := lock.NewSweeper(nil, time.Hour, time.Minute)
	require.Error(t, err)
	_, err = lock.NewSweeper(f.svc, 0, time.Minute)
	require.Error(t, err, "zero expiry means sweeping is disabled")
	_, err = lock.NewSweeper(f.svc, time.Hour, 0)
	require.Error(t, err)
}

func TestSweeper_SweepOnceReleasesOnlyExpiredLocks(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Acquire(ctx, lock.Articles, "a1", alice, false))
	f.clock.Advance(45 * time.Minute)
	require.NoError(t, f.svc.Acquire(ctx, lock.Blocks, "b1", bob, false))
	f.clock.Advance(20 * time.Minute)

	sweeper, err := lock.NewSweeper(f.svc, time.Hour, time.Minute)
	require.NoError(t, err)

	released, err := sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), released)

	status, err := f.svc.Status(ctx, lock.Articles, "a1")
	require.NoError(t, err)
	assert.False(t, status.IsLocked, "lock older than the expiry is released")

	status, err = f.svc.Status(ctx, lock.Blocks, "b1")
	require.NoError(t, err)
	assert.True(t, status.IsLocked, "fresh lock is kept")
	f.requireCoNull(t)
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, f.svc.Acquire(ctx, lock.Articles, "a1", alice, false))
	f.clock.Advance(2 * time.Hour)

	sweeper, err := lock.NewSweeper(f.svc, time.Hour, 10*time.Millisecond)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- sweeper.Run(ctx) }()

	require.Eventually(t, func() bool {
		row, _ := f.store.Get(lock.KindArticle, "a1")
		return row.Blocked == nil
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
