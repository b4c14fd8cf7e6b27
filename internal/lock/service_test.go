package lock_test

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/quotedesk/internal/errors"
	"github.com/tphakala/quotedesk/internal/lock"
	"github.com/tphakala/quotedesk/internal/lock/locktest"
	"github.com/tphakala/quotedesk/internal/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	alice = lock.User{ID: "user-alice", Name: "Alice"}
	bob   = lock.User{ID: "user-bob", Name: "Bob"}

	baseTime = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
)

// clock is a manually advanced time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	store *locktest.Store
	svc   *lock.Service
	clock *clock
	rec   *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := locktest.New()
	store.AddUser(alice.ID, alice.Name)
	store.AddUser(bob.ID, bob.Name)
	store.Put(lock.KindArticle, "a1", map[string]any{"title": "Steel beam"})
	store.Put(lock.KindArticle, "a2", map[string]any{"title": "Concrete"})
	store.Put(lock.KindBlock, "b1", map[string]any{"content": "Intro"})
	store.Put(lock.KindQuoteVersion, "q1", map[string]any{"title": "v1"})
	store.Put(lock.KindSalesOpportunity, "s1", map[string]any{"title": "Warehouse"})

	c := &clock{now: baseTime}
	rec := &recorder{}
	svc, err := lock.NewService(store, lock.DefaultResources(),
		lock.WithClock(c.Now),
		lock.WithLogger(logger.NewSlogLogger(io.Discard, logger.LogLevelDebug, time.UTC)),
		lock.WithRecorder(rec))
	require.NoError(t, err)

	return &fixture{store: store, svc: svc, clock: c, rec: rec}
}

func (f *fixture) requireCoNull(t *testing.T) {
	t.Helper()
	require.True(t, f.store.CoNull(), "blocked and blocked_by must be set and cleared together")
}

type recorder struct {
	mu       sync.Mutex
	outcomes map[string]int
	released map[string]int64
}

func (r *recorder) RecordOperation(kind lock.Kind, op, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes == nil {
		r.outcomes = make(map[string]int)
	}
	r.outcomes[string(kind)+"/"+op+"/"+outcome]++
}

func (r *recorder) RecordReleased(kind lock.Kind, reason string, n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released == nil {
		r.released = make(map[string]int64)
	}
	r.released[string(kind)+"/"+reason] += n
}

func (r *recorder) outcome(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outcomes[key]
}

func TestNewService_Validation(t *testing.T) {
	t.Parallel()

	_, err := lock.NewService(nil, lock.DefaultResources())
	require.Error(t, err)

	_, err = lock.NewService(locktest.New(), []lock.Resource{lock.Articles, lock.Articles})
	require.Error(t, err)

	broken := lock.Articles
	broken.Columns.Blocked = ""
	_, err = lock.NewService(locktest.New(), []lock.Resource{broken})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestService_Resource(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	res, ok := f.svc.Resource(lock.KindBlock)
	require.True(t, ok)
	assert.Equal(t, "blocks", res.Table)

	_, ok = f.svc.Resource("invoice")
	assert.False(t, ok)
	assert.Len(t, f.svc.Resources(), 4)
}

func TestCheckEditable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("unlocked passes for anyone", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		require.NoError(t, f.svc.CheckEditable(ctx, lock.Articles, "a1", bob))
	})

	t.Run("holder passes", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		require.NoError(t, f.svc.Acquire(ctx, lock.Articles, "a1", alice, false))
		require.NoError(t, f.svc.CheckEditable(ctx, lock.Articles, "a1", alice))
	})

	t.Run("other user gets edit lock error", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		require.NoError(t, f.svc.Acquire(ctx, lock.Articles, "a1", alice, false))

		err := f.svc.CheckEditable(ctx, lock.Articles, "a1", bob)
		var editErr *lock.EditLockError
		require.ErrorAs(t, err, &editErr)
		assert.Equal(t, lock.KindArticle, editErr.Kind)
		assert.Equal(t, "a1", editErr.ResourceID)
		assert.Equal(t, alice.ID, editErr.LockedBy)
		assert.Equal(t, alice.Name, editErr.LockedByName)
		assert.Equal(t, baseTime, editErr.LockedAt)
		assert.Equal(t, lock.Articles.Messages.Locked, editErr.Message)
		assert.True(t, errors.IsCategory(err, errors.CategoryConflict))
	})

	t.Run("missing row is not found", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		err := f.svc.CheckEditable(ctx, lock.Articles, "missing", alice)
		var nf *lock.NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "missing", nf.ResourceID)
		assert.True(t, errors.IsNotFound(err))
	})
}

func TestAcquire(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("conflict leaves state unchanged", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		require.NoError(t, f.svc.Acquire(ctx, lock.Articles, "a1", alice, false))
		before, _ := f.store.Get(lock.KindArticle, "a1")

		f.clock.Advance(time.Minute)
		err := f.svc.Acquire(ctx, lock.Articles, "a1", bob, false)
		var conflict *lock.LockConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, alice.ID, conflict.LockedBy)
		assert.Equal(t, alice.Name, conflict.LockedByName)

		after, _ := f.store.Get(lock.KindArticle, "a1")
		assert.Equal(t, *before.Blocked, *after.Blocked)
		assert.Equal(t, *before.BlockedBy, *after.BlockedBy)
		assert.Equal(t, 1, f.rec.outcome("article/acquire/conflict"))
		f.requireCoNull(t)
	})

	t.Run("re-acquire by holder refreshes timestamp", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		require.NoError(t, f.svc.Acquire(ctx, lock.Articles, "a1", alice, false))
		f.clock.Advance(5 * time.Minute)
		require.NoError(t, f.svc.Acquire(ctx, lock.Articles, "a1", alice, false))

		status, err := f.svc.Status(ctx, lock.Articles, "a1")
		require.NoError(t, err)
		assert.Equal(t, baseTime.Add(5*time.Minute), *status.LockedAt)
	})

	t.Run("force overwrites another holder", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		require.NoError(t, f.svc.Acquire(ctx, lock.Articles, "a1", alice, false))
		require.NoError(t, f.svc.Acquire(ctx, lock.Articles, "a1", bob, true))

		status, err := f.svc.Status(ctx, lock.Articles, "a1")
		require.NoError(t, err)
		assert.Equal(t, bob.ID, *status.LockedBy)
		assert.Equal(t, bob.Name, *status.LockedByName)
		f.requireCoNull(t)
	})

	t.Run("force on own and unlocked rows succeeds", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		require.NoError(t, f.svc.Acquire(ctx, lock.Blocks, "b1", alice, true))
		require.NoError(t, f.svc.Acquire(ctx, lock.Blocks, "b1", alice, true))

		status, err := f.svc.Status(ctx, lock.Blocks, "b1")
		require.NoError(t, err)
		assert.True(t, status.IsLocked)
		assert.Equal(t, alice.ID, *status.LockedBy)
	})

	t.Run("missing row", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		for _, force := range []bool{false, true} {
			err := f.svc.Acquire(ctx, lock.Articles, "missing", alice, force)
			var nf *lock.NotFoundError
			require.ErrorAs(t, err, &nf)
		}
	})
}

func TestRelease(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("holder releases", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		require.NoError(t, f.svc.Acquire(ctx, lock.QuoteVersions, "q1", alice, false))
		require.NoError(t, f.svc.Release(ctx, lock.QuoteVersions, "q1", alice))

		status, err := f.svc.Status(ctx, lock.QuoteVersions, "q1")
		require.NoError(t, err)
		assert.False(t, status.IsLocked)
		assert.Nil(t, status.LockedBy)
		assert.Nil(t, status.LockedAt)
		f.requireCoNull(t)
	})

	t.Run("release of unlocked resource is a no-op success", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		require.NoError(t, f.svc.Acquire(ctx, lock.QuoteVersions, "q1", alice, false))
		require.NoError(t, f.svc.Release(ctx, lock.QuoteVersions, "q1", alice))
		require.NoError(t, f.svc.Release(ctx, lock.QuoteVersions, "q1", alice))
		require.NoError(t, f.svc.Release(ctx, lock.QuoteVersions, "q1", bob))
	})

	t.Run("non-holder is denied", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		require.NoError(t, f.svc.Acquire(ctx, lock.QuoteVersions, "q1", alice, false))

		err := f.svc.Release(ctx, lock.QuoteVersions, "q1", bob)
		var denied *lock.UnlockPermissionError
		require.ErrorAs(t, err, &denied)
		assert.Equal(t, alice.ID, denied.LockedBy)

		var editErr *lock.EditLockError
		assert.NotErrorAs(t, err, &editErr, "permission failure is distinct from edit conflicts")

		status, err := f.svc.Status(ctx, lock.QuoteVersions, "q1")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, *status.LockedBy)
	})

	t.Run("missing row", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		var nf *lock.NotFoundError
		require.ErrorAs(t, f.svc.Release(ctx, lock.QuoteVersions, "missing", alice), &nf)
	})
}

func TestUpdateAndDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("unlocked write succeeds", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		require.NoError(t, f.svc.Update(ctx, lock.Articles, "a1", bob, map[string]any{"title": "Oak"}))

		row, _ := f.store.Get(lock.KindArticle, "a1")
		assert.Equal(t, "Oak", row.Fields["title"])
		assert.Nil(t, row.Blocked, "writes never acquire locks")
	})

	t.Run("lock columns are rejected", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		for _, column := range []string{"blocked", "blocked_by", "id"} {
			err := f.svc.Update(ctx, lock.Articles, "a1", alice, map[string]any{column: "x"})
			require.ErrorIs(t, err, lock.ErrLockColumnWrite)
			assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
		}
		require.ErrorIs(t, f.svc.Update(ctx, lock.Articles, "a1", alice, nil), lock.ErrNoFields)
	})

	t.Run("delete by holder", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		require.NoError(t, f.svc.Acquire(ctx, lock.SalesOpportunities, "s1", alice, false))
		require.NoError(t, f.svc.Delete(ctx, lock.SalesOpportunities, "s1", alice))

		_, ok := f.store.Get(lock.KindSalesOpportunity, "s1")
		assert.False(t, ok)

		var nf *lock.NotFoundError
		require.ErrorAs(t, f.svc.Delete(ctx, lock.SalesOpportunities, "s1", alice), &nf)
	})

	t.Run("delete by other user is rejected", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		require.NoError(t, f.svc.Acquire(ctx, lock.SalesOpportunities, "s1", alice, false))

		var editErr *lock.EditLockError
		require.ErrorAs(t, f.svc.Delete(ctx, lock.SalesOpportunities, "s1", bob), &editErr)
		_, ok := f.store.Get(lock.KindSalesOpportunity, "s1")
		assert.True(t, ok)
	})
}

// Scenario A: unlocked, A acquires, status shows A.
func TestScenario_AcquireThenStatus(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Acquire(ctx, lock.Articles, "a1", alice, false))

	status, err := f.svc.Status(ctx, lock.Articles, "a1")
	require.NoError(t, err)
	assert.True(t, status.IsLocked)
	assert.Equal(t, alice.ID, *status.LockedBy)
	assert.Equal(t, alice.Name, *status.LockedByName)
	assert.Equal(t, baseTime, *status.LockedAt)
}

// Scenario B: A holds the lock, B's write is rejected and the row is unchanged.
func TestScenario_ForeignWriteRejected(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Acquire(ctx, lock.Articles, "a1", alice, false))

	err := f.svc.Update(ctx, lock.Articles, "a1", bob, map[string]any{"title": "Hijacked"})
	var editErr *lock.EditLockError
	require.ErrorAs(t, err, &editErr)
	assert.Equal(t, alice.ID, editErr.LockedBy)

	row, _ := f.store.Get(lock.KindArticle, "a1")
	assert.Equal(t, "Steel beam", row.Fields["title"])
}

// Scenario C: the holder writes, the lock and its timestamp stay.
func TestScenario_HolderWriteKeepsLock(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Acquire(ctx, lock.Articles, "a1", alice, false))
	f.clock.Advance(10 * time.Minute)
	require.NoError(t, f.svc.Update(ctx, lock.Articles, "a1", alice, map[string]any{"title": "Steel beam HEA200"}))

	row, _ := f.store.Get(lock.KindArticle, "a1")
	assert.Equal(t, "Steel beam HEA200", row.Fields["title"])
	require.NotNil(t, row.Blocked)
	assert.Equal(t, baseTime, *row.Blocked, "writes do not refresh the lock timestamp")
	assert.Equal(t, alice.ID, *row.BlockedBy)
}

// Scenario D: B force-acquires, A's next write fails naming B.
func TestScenario_ForceTakeover(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Acquire(ctx, lock.Blocks, "b1", alice, false))
	f.clock.Advance(time.Minute)
	require.NoError(t, f.svc.Acquire(ctx, lock.Blocks, "b1", bob, true))

	err := f.svc.Update(ctx, lock.Blocks, "b1", alice, map[string]any{"content": "Outdated"})
	var editErr *lock.EditLockError
	require.ErrorAs(t, err, &editErr)
	assert.Equal(t, bob.ID, editErr.LockedBy)
	assert.Equal(t, baseTime.Add(time.Minute), editErr.LockedAt)
}

// Scenario E: bulk release clears locks across resource types.
func TestScenario_BulkRelease(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Acquire(ctx, lock.Articles, "a1", alice, false))
	require.NoError(t, f.svc.Acquire(ctx, lock.Blocks, "b1", alice, false))
	require.NoError(t, f.svc.Acquire(ctx, lock.Articles, "a2", bob, false))

	result, err := f.svc.ReleaseAllForUser(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 4, result.Operations)
	assert.Equal(t, int64(2), result.Released)

	for _, target := range []struct {
		res lock.Resource
		id  string
	}{{lock.Articles, "a1"}, {lock.Blocks, "b1"}} {
		status, err := f.svc.Status(ctx, target.res, target.id)
		require.NoError(t, err)
		assert.False(t, status.IsLocked, "%s %s", target.res.Kind, target.id)
	}

	locks, err := f.svc.ListLocks(ctx)
	require.NoError(t, err)
	require.Len(t, locks, 1, "other users' locks survive")
	assert.Equal(t, bob.ID, *locks[0].State.BlockedBy)
	f.requireCoNull(t)
}

func TestBulkRelease_PartialFailureReported(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	f.store.FailWith = errors.NewStd("database is locked")
	result, err := f.svc.ReleaseAllForUser(ctx, alice)
	require.Error(t, err)
	assert.Equal(t, 0, result.Operations)
	assert.True(t, errors.IsCategory(err, errors.CategoryLockRelease))
}

func TestStorageErrorsAreNotLockErrors(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	f.store.FailWith = errors.NewStd("connection refused")
	err := f.svc.CheckEditable(ctx, lock.Articles, "a1", alice)
	require.Error(t, err)

	var (
		nf      *lock.NotFoundError
		editErr *lock.EditLockError
	)
	assert.NotErrorAs(t, err, &nf)
	assert.NotErrorAs(t, err, &editErr)
	assert.True(t, errors.IsCategory(err, errors.CategoryDatabase))
	assert.Equal(t, 1, f.rec.outcome("article/check/error"))
}

func TestConcurrentUnforcedAcquire_ExactlyOneWins(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	const contenders = 16
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		conflicts atomic.Int32
		start     = make(chan struct{})
	)

	for i := range contenders {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := lock.User{ID: "user-" + string(rune('a'+i)), Name: "User"}
			<-start
			err := f.svc.Acquire(ctx, lock.Articles, "a1", user, false)
			var conflict *lock.LockConflictError
			switch {
			case err == nil:
				successes.Add(1)
			case errors.As(err, &conflict):
				conflicts.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(contenders-1), conflicts.Load())
	f.requireCoNull(t)
}

// takeoverStore simulates another user force-acquiring between the
// validation read and the guarded write.
type takeoverStore struct {
	*locktest.Store
	thief string
	once  sync.Once
}

func (s *takeoverStore) WriteEntityFields(ctx context.Context, res lock.Resource, id, actorID string, fields map[string]any) (bool, error) {
	s.once.Do(func() { s.Lock(res.Kind, id, s.thief, baseTime.Add(time.Hour)) })
	return s.Store.WriteEntityFields(ctx, res, id, actorID, fields)
}

func (s *takeoverStore) WriteLockStateIf(ctx context.Context, res lock.Resource, id, actorID string, blocked *time.Time, blockedBy *string) (bool, error) {
	s.once.Do(func() { s.Lock(res.Kind, id, s.thief, baseTime.Add(time.Hour)) })
	return s.Store.WriteLockStateIf(ctx, res, id, actorID, blocked, blockedBy)
}

func TestGuardedWrite_LosesRaceToTakeover(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	newService := func(t *testing.T) (*takeoverStore, *lock.Service) {
		t.Helper()
		store := &takeoverStore{Store: locktest.New(), thief: bob.ID}
		store.Put(lock.KindArticle, "a1", map[string]any{"title": "Steel beam"})
		svc, err := lock.NewService(store, lock.DefaultResources(),
			lock.WithLogger(logger.NewSlogLogger(io.Discard, logger.LogLevelInfo, nil)))
		require.NoError(t, err)
		return store, svc
	}

	t.Run("update", func(t *testing.T) {
		t.Parallel()
		store, svc := newService(t)

		err := svc.Update(ctx, lock.Articles, "a1", alice, map[string]any{"title": "Lost update"})
		var editErr *lock.EditLockError
		require.ErrorAs(t, err, &editErr)
		assert.Equal(t, bob.ID, editErr.LockedBy)

		row, _ := store.Get(lock.KindArticle, "a1")
		assert.Equal(t, "Steel beam", row.Fields["title"])
	})

	t.Run("acquire", func(t *testing.T) {
		t.Parallel()
		_, svc := newService(t)

		err := svc.Acquire(ctx, lock.Articles, "a1", alice, false)
		var conflict *lock.LockConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, bob.ID, conflict.LockedBy)
	})
}

func TestStatus_NotFound(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.svc.Status(context.Background(), lock.SalesOpportunities, "missing")
	var nf *lock.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, lock.SalesOpportunities.Messages.NotFound, nf.Message)
	assert.Equal(t, 1, f.rec.outcome("sales-opportunity/status/not_found"))
}
