// Package locktest provides an in-memory lock.Store for tests.
package locktest

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/tphakala/quotedesk/internal/lock"
)

// Row is one in-memory resource row.
type Row struct {
	Blocked   *time.Time
	BlockedBy *string
	Fields    map[string]any
}

// Store is a mutex-guarded lock.Store. Every method is atomic, matching the
// single-statement guarantees of the SQL store.
type Store struct {
	mu    sync.Mutex
	rows  map[lock.Kind]map[string]*Row
	users map[string]string

	// FailWith, when set, is returned by every method.
	FailWith error
}

var _ lock.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		rows:  make(map[lock.Kind]map[string]*Row),
		users: make(map[string]string),
	}
}

// AddUser registers a display name for a user id.
func (s *Store) AddUser(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = name
}

// Put inserts or replaces an unlocked row.
func (s *Store) Put(kind lock.Kind, id string, fields map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rows[kind] == nil {
		s.rows[kind] = make(map[string]*Row)
	}
	s.rows[kind][id] = &Row{Fields: maps.Clone(fields)}
}

// Lock sets the lock columns directly.
func (s *Store) Lock(kind lock.Kind, id, userID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row := s.rows[kind][id]; row != nil {
		row.Blocked = &at
		row.BlockedBy = &userID
	}
}

// Get returns a copy of a row.
func (s *Store) Get(kind lock.Kind, id string) (Row, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.rows[kind][id]
	if row == nil {
		return Row{}, false
	}
	return Row{Blocked: row.Blocked, BlockedBy: row.BlockedBy, Fields: maps.Clone(row.Fields)}, true
}

// CoNull reports whether every row keeps blocked and blocked_by co-null.
func (s *Store) CoNull() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rows := range s.rows {
		for _, row := range rows {
			if (row.Blocked == nil) != (row.BlockedBy == nil) {
				return false
			}
		}
	}
	return true
}

func (s *Store) editable(row *Row, actorID string) bool {
	return row.Blocked == nil || (row.BlockedBy != nil && *row.BlockedBy == actorID)
}

func (s *Store) state(id string, row *Row) *lock.State {
	st := &lock.State{ID: id, Blocked: row.Blocked, BlockedBy: row.BlockedBy}
	if row.BlockedBy != nil {
		if name, ok := s.users[*row.BlockedBy]; ok {
			st.BlockedByName = &name
		}
	}
	return st
}

func (s *Store) ReadLockState(_ context.Context, res lock.Resource, id string) (*lock.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	row := s.rows[res.Kind][id]
	if row == nil {
		return nil, lock.ErrRowNotFound
	}
	return s.state(id, row), nil
}

func (s *Store) WriteLockState(_ context.Context, res lock.Resource, id string, blocked *time.Time, blockedBy *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}
	row := s.rows[res.Kind][id]
	if row == nil {
		return lock.ErrRowNotFound
	}
	row.Blocked, row.BlockedBy = blocked, blockedBy
	return nil
}

func (s *Store) WriteLockStateIf(_ context.Context, res lock.Resource, id, actorID string, blocked *time.Time, blockedBy *string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return false, s.FailWith
	}
	row := s.rows[res.Kind][id]
	if row == nil || !s.editable(row, actorID) {
		return false, nil
	}
	row.Blocked, row.BlockedBy = blocked, blockedBy
	return true, nil
}

func (s *Store) WriteEntityFields(_ context.Context, res lock.Resource, id, actorID string, fields map[string]any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return false, s.FailWith
	}
	for column := range fields {
		if res.IsLockColumn(column) {
			return false, lock.ErrLockColumnWrite
		}
	}
	row := s.rows[res.Kind][id]
	if row == nil || !s.editable(row, actorID) {
		return false, nil
	}
	if row.Fields == nil {
		row.Fields = make(map[string]any)
	}
	maps.Copy(row.Fields, fields)
	return true, nil
}

func (s *Store) DeleteEntity(_ context.Context, res lock.Resource, id, actorID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return false, s.FailWith
	}
	row := s.rows[res.Kind][id]
	if row == nil || !s.editable(row, actorID) {
		return false, nil
	}
	delete(s.rows[res.Kind], id)
	return true, nil
}

func (s *Store) ClearLocksHeldBy(_ context.Context, res lock.Resource, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return 0, s.FailWith
	}
	var n int64
	for _, row := range s.rows[res.Kind] {
		if row.BlockedBy != nil && *row.BlockedBy == userID {
			row.Blocked, row.BlockedBy = nil, nil
			n++
		}
	}
	return n, nil
}

func (s *Store) ExpireLocks(_ context.Context, res lock.Resource, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return 0, s.FailWith
	}
	var n int64
	for _, row := range s.rows[res.Kind] {
		if row.Blocked != nil && row.Blocked.Before(before) {
			row.Blocked, row.BlockedBy = nil, nil
			n++
		}
	}
	return n, nil
}

func (s *Store) ListLocked(_ context.Context, res lock.Resource) ([]lock.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	ids := slices.Sorted(maps.Keys(s.rows[res.Kind]))
	var out []lock.State
	for _, id := range ids {
		row := s.rows[res.Kind][id]
		if row.Blocked != nil {
			out = append(out, *s.state(id, row))
		}
	}
	return out, nil
}
