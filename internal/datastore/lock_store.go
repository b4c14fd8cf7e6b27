package datastore

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"gorm.io/gorm"

	"github.com/tphakala/quotedesk/internal/errors"
	"github.com/tphakala/quotedesk/internal/lock"
)

// identifierPattern matches the table and column names accepted in lock
// resource configuration. They are interpolated into SQL, so nothing else
// is allowed.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// LockStore implements lock.Store on the lock columns of each resource table.
// Every conditional method is a single UPDATE or DELETE carrying the
// "unlocked or held by actor" predicate, so the check and the write cannot
// interleave with another request.
type LockStore struct {
	db    *gorm.DB
	users lock.UserDirectory
}

var _ lock.Store = (*LockStore)(nil)

// NewLockStore creates a lock store resolving holder names from users.
func NewLockStore(db *gorm.DB, users lock.UserDirectory) (*LockStore, error) {
	if db == nil {
		return nil, dbError(ErrNotInitialized, "new_lock_store", "")
	}
	for _, ident := range []string{users.Table, users.IDColumn, users.NameColumn} {
		if !identifierPattern.MatchString(ident) {
			return nil, validationError("invalid user directory identifier", "users", ident)
		}
	}
	return &LockStore{db: db, users: users}, nil
}

func checkIdentifiers(res *lock.Resource, extra ...string) error {
	idents := append([]string{res.Table, res.Columns.ID, res.Columns.Blocked, res.Columns.BlockedBy}, extra...)
	for _, ident := range idents {
		if !identifierPattern.MatchString(ident) {
			return fmt.Errorf("%w: %q", ErrInvalidIdentifier, ident)
		}
	}
	return nil
}

// editablePredicate is the lock guard shared by all conditional writes.
func editablePredicate(res *lock.Resource) string {
	return fmt.Sprintf("%s = ? AND (%s IS NULL OR %s = ?)", res.Columns.ID, res.Columns.Blocked, res.Columns.BlockedBy)
}

// lockValues returns the column map for a lock write. Nil pointers become SQL NULL.
func lockValues(res *lock.Resource, blocked *time.Time, blockedBy *string) map[string]any {
	values := map[string]any{res.Columns.Blocked: nil, res.Columns.BlockedBy: nil}
	if blocked != nil && blockedBy != nil {
		values[res.Columns.Blocked] = blocked.UTC()
		values[res.Columns.BlockedBy] = *blockedBy
	}
	return values
}

// stateRow is the scan target of lock state queries.
type stateRow struct {
	ID            string
	Blocked       *time.Time
	BlockedBy     *string
	BlockedByName *string
}

func (r *stateRow) toState() lock.State {
	st := lock.State{ID: r.ID, Blocked: r.Blocked, BlockedBy: r.BlockedBy, BlockedByName: r.BlockedByName}
	if st.Blocked != nil {
		t := st.Blocked.UTC()
		st.Blocked = &t
	}
	return st
}

// stateQuery selects lock state left-joined against the user directory.
func (s *LockStore) stateQuery(ctx context.Context, res *lock.Resource) *gorm.DB {
	return s.db.WithContext(ctx).
		Table(res.Table+" AS r").
		Select(fmt.Sprintf("r.%s AS id, r.%s AS blocked, r.%s AS blocked_by, u.%s AS blocked_by_name",
			res.Columns.ID, res.Columns.Blocked, res.Columns.BlockedBy, s.users.NameColumn)).
		Joins(fmt.Sprintf("LEFT JOIN %s AS u ON u.%s = r.%s",
			s.users.Table, s.users.IDColumn, res.Columns.BlockedBy))
}

// ReadLockState implements lock.Store.
func (s *LockStore) ReadLockState(ctx context.Context, res lock.Resource, id string) (*lock.State, error) {
	if err := checkIdentifiers(&res); err != nil {
		return nil, err
	}

	var row stateRow
	err := s.stateQuery(ctx, &res).
		Where(fmt.Sprintf("r.%s = ?", res.Columns.ID), id).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, lock.ErrRowNotFound
		}
		return nil, err
	}

	st := row.toState()
	return &st, nil
}

// WriteLockState implements lock.Store.
func (s *LockStore) WriteLockState(ctx context.Context, res lock.Resource, id string, blocked *time.Time, blockedBy *string) error {
	if err := checkIdentifiers(&res); err != nil {
		return err
	}

	result := s.db.WithContext(ctx).Table(res.Table).
		Where(fmt.Sprintf("%s = ?", res.Columns.ID), id).
		Updates(lockValues(&res, blocked, blockedBy))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return lock.ErrRowNotFound
	}
	return nil
}

// WriteLockStateIf implements lock.Store.
func (s *LockStore) WriteLockStateIf(ctx context.Context, res lock.Resource, id, actorID string, blocked *time.Time, blockedBy *string) (bool, error) {
	if err := checkIdentifiers(&res); err != nil {
		return false, err
	}

	result := s.db.WithContext(ctx).Table(res.Table).
		Where(editablePredicate(&res), id, actorID).
		Updates(lockValues(&res, blocked, blockedBy))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// WriteEntityFields implements lock.Store.
func (s *LockStore) WriteEntityFields(ctx context.Context, res lock.Resource, id, actorID string, fields map[string]any) (bool, error) {
	if len(fields) == 0 {
		return false, lock.ErrNoFields
	}
	columns := make([]string, 0, len(fields))
	for column := range fields {
		if res.IsLockColumn(column) {
			return false, lock.ErrLockColumnWrite
		}
		columns = append(columns, column)
	}
	if err := checkIdentifiers(&res, columns...); err != nil {
		return false, err
	}

	result := s.db.WithContext(ctx).Table(res.Table).
		Where(editablePredicate(&res), id, actorID).
		Updates(fields)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// DeleteEntity implements lock.Store.
func (s *LockStore) DeleteEntity(ctx context.Context, res lock.Resource, id, actorID string) (bool, error) {
	if err := checkIdentifiers(&res); err != nil {
		return false, err
	}

	result := s.db.WithContext(ctx).Exec(
		fmt.Sprintf("DELETE FROM %s WHERE %s", res.Table, editablePredicate(&res)),
		id, actorID)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ClearLocksHeldBy implements lock.Store.
func (s *LockStore) ClearLocksHeldBy(ctx context.Context, res lock.Resource, userID string) (int64, error) {
	if err := checkIdentifiers(&res); err != nil {
		return 0, err
	}

	result := s.db.WithContext(ctx).Table(res.Table).
		Where(fmt.Sprintf("%s = ?", res.Columns.BlockedBy), userID).
		Updates(lockValues(&res, nil, nil))
	return result.RowsAffected, result.Error
}

// ExpireLocks implements lock.Store.
func (s *LockStore) ExpireLocks(ctx context.Context, res lock.Resource, before time.Time) (int64, error) {
	if err := checkIdentifiers(&res); err != nil {
		return 0, err
	}

	result := s.db.WithContext(ctx).Table(res.Table).
		Where(fmt.Sprintf("%s IS NOT NULL AND %s < ?", res.Columns.Blocked, res.Columns.Blocked), before.UTC()).
		Updates(lockValues(&res, nil, nil))
	return result.RowsAffected, result.Error
}

// ListLocked implements lock.Store.
func (s *LockStore) ListLocked(ctx context.Context, res lock.Resource) ([]lock.State, error) {
	if err := checkIdentifiers(&res); err != nil {
		return nil, err
	}

	var rows []stateRow
	err := s.stateQuery(ctx, &res).
		Where(fmt.Sprintf("r.%s IS NOT NULL", res.Columns.Blocked)).
		Order(fmt.Sprintf("r.%s", res.Columns.Blocked)).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	states := make([]lock.State, 0, len(rows))
	for i := range rows {
		states = append(states, rows[i].toState())
	}
	return states, nil
}
