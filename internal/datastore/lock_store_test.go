package datastore

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tphakala/quotedesk/internal/datastore/entities"
	"github.com/tphakala/quotedesk/internal/errors"
	"github.com/tphakala/quotedesk/internal/lock"
)

func TestNewLockStore_RejectsBadIdentifiers(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)

	_, err := NewLockStore(db, lock.UserDirectory{Table: "users; DROP TABLE users", IDColumn: "id", NameColumn: "name"})
	require.Error(t, err)

	_, err = NewLockStore(nil, lock.DefaultUserDirectory)
	require.ErrorIs(t, err, ErrNotInitialized)
}

func TestLockStore_ReadLockState(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	s := seedData(t, db)
	store := newTestLockStore(t, db)
	ctx := context.Background()

	state, err := store.ReadLockState(ctx, lock.Articles, s.article.ID)
	require.NoError(t, err)
	assert.Equal(t, s.article.ID, state.ID)
	assert.False(t, state.IsLocked())
	assert.Nil(t, state.BlockedBy)
	assert.Nil(t, state.BlockedByName)

	require.NoError(t, store.WriteLockState(ctx, lock.Articles, s.article.ID, ptr(lockTime), &s.alice.ID))

	state, err = store.ReadLockState(ctx, lock.Articles, s.article.ID)
	require.NoError(t, err)
	require.True(t, state.IsLocked())
	assert.True(t, lockTime.Equal(*state.Blocked))
	assert.Equal(t, s.alice.ID, *state.BlockedBy)
	require.NotNil(t, state.BlockedByName)
	assert.Equal(t, "Alice", *state.BlockedByName)

	_, err = store.ReadLockState(ctx, lock.Articles, "missing")
	require.ErrorIs(t, err, lock.ErrRowNotFound)
}

func TestLockStore_HolderWithoutUserRow(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	s := seedData(t, db)
	store := newTestLockStore(t, db)
	ctx := context.Background()

	require.NoError(t, store.WriteLockState(ctx, lock.Blocks, s.block.ID, ptr(lockTime), ptr("deleted-user")))

	state, err := store.ReadLockState(ctx, lock.Blocks, s.block.ID)
	require.NoError(t, err)
	assert.Equal(t, "deleted-user", *state.BlockedBy)
	assert.Nil(t, state.BlockedByName, "left join keeps rows whose holder is unknown")
}

func TestLockStore_WriteLockState_NotFound(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	store := newTestLockStore(t, db)

	err := store.WriteLockState(context.Background(), lock.Articles, "missing", ptr(lockTime), ptr("u"))
	require.ErrorIs(t, err, lock.ErrRowNotFound)
}

func TestLockStore_ConditionalWrites(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	s := seedData(t, db)
	store := newTestLockStore(t, db)
	ctx := context.Background()
	res := lock.QuoteVersions
	id := s.quote.ID

	applied, err := store.WriteLockStateIf(ctx, res, id, s.alice.ID, ptr(lockTime), &s.alice.ID)
	require.NoError(t, err)
	assert.True(t, applied, "unlocked row is writable")

	applied, err = store.WriteLockStateIf(ctx, res, id, s.bob.ID, ptr(lockTime), &s.bob.ID)
	require.NoError(t, err)
	assert.False(t, applied, "row held by another user is not writable")

	applied, err = store.WriteEntityFields(ctx, res, id, s.bob.ID, map[string]any{"title": "Bob's edit"})
	require.NoError(t, err)
	assert.False(t, applied)

	applied, err = store.WriteEntityFields(ctx, res, id, s.alice.ID, map[string]any{"title": "Alice's edit"})
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = store.DeleteEntity(ctx, res, id, s.bob.ID)
	require.NoError(t, err)
	assert.False(t, applied)

	var q entities.QuoteVersion
	require.NoError(t, db.Where("id = ?", id).Take(&q).Error)
	assert.Equal(t, "Alice's edit", q.Title)
	require.NotNil(t, q.BlockedBy)
	assert.Equal(t, s.alice.ID, *q.BlockedBy)

	// Releasing twice still matches the row
	applied, err = store.WriteLockStateIf(ctx, res, id, s.alice.ID, nil, nil)
	require.NoError(t, err)
	assert.True(t, applied)
	applied, err = store.WriteLockStateIf(ctx, res, id, s.alice.ID, nil, nil)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = store.DeleteEntity(ctx, res, id, s.bob.ID)
	require.NoError(t, err)
	assert.True(t, applied, "unlocked row can be deleted by anyone")

	applied, err = store.DeleteEntity(ctx, res, id, s.bob.ID)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestLockStore_WriteEntityFields_Rejects(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	s := seedData(t, db)
	store := newTestLockStore(t, db)
	ctx := context.Background()

	_, err := store.WriteEntityFields(ctx, lock.Articles, s.article.ID, s.alice.ID, map[string]any{"blocked_by": s.alice.ID})
	require.ErrorIs(t, err, lock.ErrLockColumnWrite)

	_, err = store.WriteEntityFields(ctx, lock.Articles, s.article.ID, s.alice.ID, map[string]any{"title = 'x', price": 1})
	require.ErrorIs(t, err, ErrInvalidIdentifier)

	_, err = store.WriteEntityFields(ctx, lock.Articles, s.article.ID, s.alice.ID, map[string]any{})
	require.ErrorIs(t, err, lock.ErrNoFields)
}

func TestLockStore_ClearExpireAndList(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	s := seedData(t, db)
	store := newTestLockStore(t, db)
	ctx := context.Background()

	require.NoError(t, store.WriteLockState(ctx, lock.Articles, s.article.ID, ptr(lockTime), &s.alice.ID))
	require.NoError(t, store.WriteLockState(ctx, lock.Blocks, s.block.ID, ptr(lockTime.Add(time.Hour)), &s.alice.ID))
	require.NoError(t, store.WriteLockState(ctx, lock.SalesOpportunities, s.deal.ID, ptr(lockTime), &s.bob.ID))

	locked, err := store.ListLocked(ctx, lock.Articles)
	require.NoError(t, err)
	require.Len(t, locked, 1)
	assert.Equal(t, "Alice", *locked[0].BlockedByName)

	n, err := store.ExpireLocks(ctx, lock.Blocks, lockTime.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "block lock is newer than the cutoff")

	n, err = store.ExpireLocks(ctx, lock.SalesOpportunities, lockTime.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = store.ClearLocksHeldBy(ctx, lock.Articles, s.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = store.ClearLocksHeldBy(ctx, lock.Articles, s.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	requireCoNull(t, db)
}

// requireCoNull checks blocked and blocked_by are co-null on every table.
func requireCoNull(t *testing.T, db *gorm.DB) {
	t.Helper()
	for _, res := range lock.DefaultResources() {
		var broken int64
		err := db.Table(res.Table).
			Where("(blocked IS NULL) <> (blocked_by IS NULL)").
			Count(&broken).Error
		require.NoError(t, err)
		assert.Zero(t, broken, "table %s has half-set lock columns", res.Table)
	}
}

func newServiceOnStore(t *testing.T, db *gorm.DB) *lock.Service {
	t.Helper()
	svc, err := lock.NewService(newTestLockStore(t, db), lock.DefaultResources())
	require.NoError(t, err)
	return svc
}

func TestService_OnSQLite_Scenarios(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	s := seedData(t, db)
	svc := newServiceOnStore(t, db)
	ctx := context.Background()

	alice := lock.User{ID: s.alice.ID, Name: s.alice.Name}
	bob := lock.User{ID: s.bob.ID, Name: s.bob.Name}

	// A: acquire then status
	require.NoError(t, svc.Acquire(ctx, lock.Articles, s.article.ID, alice, false))
	status, err := svc.Status(ctx, lock.Articles, s.article.ID)
	require.NoError(t, err)
	assert.True(t, status.IsLocked)
	assert.Equal(t, alice.ID, *status.LockedBy)
	assert.Equal(t, "Alice", *status.LockedByName)

	// B: foreign write rejected, row unchanged
	err = svc.Update(ctx, lock.Articles, s.article.ID, bob, map[string]any{"title": "Bob was here"})
	var editErr *lock.EditLockError
	require.ErrorAs(t, err, &editErr)
	assert.Equal(t, alice.ID, editErr.LockedBy)
	assert.True(t, status.LockedAt.Equal(editErr.LockedAt))

	// C: holder writes, lock timestamp untouched
	require.NoError(t, svc.Update(ctx, lock.Articles, s.article.ID, alice, map[string]any{"title": "Steel beam HEA200"}))
	after, err := svc.Status(ctx, lock.Articles, s.article.ID)
	require.NoError(t, err)
	assert.True(t, status.LockedAt.Equal(*after.LockedAt))

	var article entities.Article
	require.NoError(t, db.Where("id = ?", s.article.ID).Take(&article).Error)
	assert.Equal(t, "Steel beam HEA200", article.Title)

	// D: force takeover
	require.NoError(t, svc.Acquire(ctx, lock.Articles, s.article.ID, bob, true))
	err = svc.Update(ctx, lock.Articles, s.article.ID, alice, map[string]any{"title": "late"})
	require.ErrorAs(t, err, &editErr)
	assert.Equal(t, bob.ID, editErr.LockedBy)

	// E: bulk release across types
	require.NoError(t, svc.Acquire(ctx, lock.Blocks, s.block.ID, bob, false))
	result, err := svc.ReleaseAllForUser(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, 4, result.Operations)
	assert.Equal(t, int64(2), result.Released)

	for _, target := range []struct {
		res lock.Resource
		id  string
	}{{lock.Articles, s.article.ID}, {lock.Blocks, s.block.ID}} {
		st, err := svc.Status(ctx, target.res, target.id)
		require.NoError(t, err)
		assert.False(t, st.IsLocked)
	}
	requireCoNull(t, db)
}

func TestService_OnSQLite_ConcurrentAcquire(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	s := seedData(t, db)
	svc := newServiceOnStore(t, db)
	ctx := context.Background()

	const contenders = 8
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
			user := lock.User{ID: string(rune('a' + i))}
			<-start
			err := svc.Acquire(ctx, lock.Blocks, s.block.ID, user, false)
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

	assert.Equal(t, int32(1), successes.Load(), "exactly one unforced acquire wins")
	assert.Equal(t, int32(contenders-1), conflicts.Load())
	requireCoNull(t, db)
}

func TestService_OnSQLite_Delete(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	s := seedData(t, db)
	svc := newServiceOnStore(t, db)
	ctx := context.Background()

	alice := lock.User{ID: s.alice.ID, Name: s.alice.Name}
	bob := lock.User{ID: s.bob.ID, Name: s.bob.Name}

	require.NoError(t, svc.Acquire(ctx, lock.SalesOpportunities, s.deal.ID, alice, false))
	var editErr *lock.EditLockError
	require.ErrorAs(t, svc.Delete(ctx, lock.SalesOpportunities, s.deal.ID, bob), &editErr)
	require.NoError(t, svc.Delete(ctx, lock.SalesOpportunities, s.deal.ID, alice))

	_, err := NewEntityRepository(db).GetSalesOpportunity(ctx, s.deal.ID)
	require.ErrorIs(t, err, ErrEntityNotFound)
	assert.True(t, errors.IsNotFound(err))
}
