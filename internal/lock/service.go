package lock

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/tphakala/quotedesk/internal/errors"
	"github.com/tphakala/quotedesk/internal/logger"
)

// maxGuardedAttempts bounds retries of a conditional write whose re-read
// shows the row is still editable by the actor.
const maxGuardedAttempts = 3

// Service is the single authority deciding whether a user may change a
// lockable resource. It is safe for concurrent use; all coordination happens
// through the store.
type Service struct {
	store     Store
	resources []Resource
	now       func() time.Time
	log       logger.Logger
	recorder  Recorder
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for lock timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the service logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// NewService creates a lock service over store for the given resource types.
func NewService(store Store, resources []Resource, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.ValidationError("lock store must not be nil")
	}

	seen := make(map[Kind]bool, len(resources))
	for i := range resources {
		if err := resources[i].Validate(); err != nil {
			return nil, err
		}
		if seen[resources[i].Kind] {
			return nil, errors.ValidationError(fmt.Sprintf("lock resource %q registered twice", resources[i].Kind))
		}
		seen[resources[i].Kind] = true
	}

	s := &Service{
		store:     store,
		resources: slices.Clone(resources),
		now:       time.Now,
		recorder:  noopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Global().Module("locks")
	}
	return s, nil
}

// Resources returns the registered resource types.
func (s *Service) Resources() []Resource {
	return slices.Clone(s.resources)
}

// Resource looks up a registered resource type.
func (s *Service) Resource(kind Kind) (Resource, bool) {
	for _, r := range s.resources {
		if r.Kind == kind {
			return r, true
		}
	}
	return Resource{}, false
}

// timestamp returns the lock acquisition time. Millisecond precision keeps
// values identical across SQLite and MySQL DATETIME(3).
func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func (s *Service) record(res *Resource, op string, start time.Time, err error) {
	s.recorder.RecordOperation(res.Kind, op, outcomeOf(err), time.Since(start))
}

func outcomeOf(err error) string {
	var (
		notFound *NotFoundError
		editLock *EditLockError
		conflict *LockConflictError
		denied   *UnlockPermissionError
	)
	switch {
	case err == nil:
		return OutcomeOK
	case errors.As(err, &notFound):
		return OutcomeNotFound
	case errors.As(err, &editLock), errors.As(err, &conflict):
		return OutcomeConflict
	case errors.As(err, &denied):
		return OutcomeDenied
	default:
		return OutcomeError
	}
}

// readState reads a row, mapping a missing row to *NotFoundError.
func (s *Service) readState(ctx context.Context, res *Resource, id string) (*State, error) {
	state, err := s.store.ReadLockState(ctx, *res, id)
	if err != nil {
		if errors.Is(err, ErrRowNotFound) {
			return nil, newNotFoundError(res, id)
		}
		return nil, newStorageError(err, res, id, "read_lock_state", errors.CategoryDatabase)
	}
	return state, nil
}

// guardedWrite runs a conditional write. When it affects no row, the row is
// re-read: a missing row yields *NotFoundError, a foreign lock yields the
// error built by onLocked, and an editable row is retried.
func (s *Service) guardedWrite(ctx context.Context, res *Resource, id, actorID, operation string,
	write func(context.Context) (bool, error), onLocked func(*State) error,
) error {
	for range maxGuardedAttempts {
		applied, err := write(ctx)
		if err != nil {
			if errors.Is(err, ErrLockColumnWrite) || errors.Is(err, ErrNoFields) {
				return newStorageError(err, res, id, operation, errors.CategoryValidation)
			}
			return newStorageError(err, res, id, operation, errors.CategoryDatabase)
		}
		if applied {
			return nil
		}

		state, err := s.readState(ctx, res, id)
		if err != nil {
			return err
		}
		if state.IsLocked() && !state.HeldBy(actorID) {
			return onLocked(state)
		}
	}

	return newStorageError(ErrContended, res, id, operation, errors.CategoryConflict)
}

// CheckEditable passes when the resource is unlocked or locked by actor, and
// returns *EditLockError when another user holds the lock. It never writes.
func (s *Service) CheckEditable(ctx context.Context, res Resource, id string, actor User) (err error) {
	start := time.Now()
	defer func() { s.record(&res, OpCheck, start, err) }()

	state, err := s.readState(ctx, &res, id)
	if err != nil {
		return err
	}
	if !state.IsLocked() || state.HeldBy(actor.ID) {
		return nil
	}

	s.log.Debug("edit rejected by lock",
		logger.String("resource_kind", string(res.Kind)),
		logger.String("resource_id", id),
		logger.String("user_id", actor.ID),
		logger.String("locked_by", state.holder()))
	return newEditLockError(&res, id, state)
}

// Status returns the current lock status of a resource.
func (s *Service) Status(ctx context.Context, res Resource, id string) (status *Status, err error) {
	start := time.Now()
	defer func() { s.record(&res, OpStatus, start, err) }()

	state, err := s.readState(ctx, &res, id)
	if err != nil {
		return nil, err
	}

	status = &Status{IsLocked: state.IsLocked()}
	if status.IsLocked {
		status.LockedBy = state.BlockedBy
		status.LockedByName = state.BlockedByName
		status.LockedAt = state.Blocked
	}
	return status, nil
}

// Acquire locks the resource for actor. Without force it fails with
// *LockConflictError when another user holds the lock; with force it
// overwrites any holder. Re-acquiring an own lock refreshes its timestamp.
func (s *Service) Acquire(ctx context.Context, res Resource, id string, actor User, force bool) (err error) {
	op := OpAcquire
	if force {
		op = OpForce
	}
	start := time.Now()
	defer func() { s.record(&res, op, start, err) }()

	state, err := s.readState(ctx, &res, id)
	if err != nil {
		return err
	}

	if !force && state.IsLocked() && !state.HeldBy(actor.ID) {
		s.log.Debug("lock acquire conflict",
			logger.String("resource_kind", string(res.Kind)),
			logger.String("resource_id", id),
			logger.String("user_id", actor.ID),
			logger.String("locked_by", state.holder()))
		return newLockConflictError(&res, id, state)
	}

	now := s.timestamp()
	holder := actor.ID

	if force {
		if err := s.store.WriteLockState(ctx, res, id, &now, &holder); err != nil {
			if errors.Is(err, ErrRowNotFound) {
				return newNotFoundError(&res, id)
			}
			return newStorageError(err, &res, id, "write_lock_state", errors.CategoryLockAcquire)
		}
		if state.IsLocked() && !state.HeldBy(actor.ID) {
			s.log.Info("lock taken over",
				logger.String("resource_kind", string(res.Kind)),
				logger.String("resource_id", id),
				logger.String("user_id", actor.ID),
				logger.String("previous_holder", state.holder()))
		}
		return nil
	}

	err = s.guardedWrite(ctx, &res, id, actor.ID, "write_lock_state_if",
		func(ctx context.Context) (bool, error) {
			return s.store.WriteLockStateIf(ctx, res, id, actor.ID, &now, &holder)
		},
		func(current *State) error { return newLockConflictError(&res, id, current) })
	if err != nil {
		return err
	}

	s.log.Debug("lock acquired",
		logger.String("resource_kind", string(res.Kind)),
		logger.String("resource_id", id),
		logger.String("user_id", actor.ID))
	return nil
}

// Release clears the actor's lock. Releasing an unlocked resource succeeds
// without writing; releasing another user's lock fails with
// *UnlockPermissionError.
func (s *Service) Release(ctx context.Context, res Resource, id string, actor User) (err error) {
	start := time.Now()
	defer func() { s.record(&res, OpRelease, start, err) }()

	state, err := s.readState(ctx, &res, id)
	if err != nil {
		return err
	}
	if !state.IsLocked() {
		return nil
	}
	if !state.HeldBy(actor.ID) {
		return newUnlockPermissionError(&res, id, state)
	}

	err = s.guardedWrite(ctx, &res, id, actor.ID, "write_lock_state_if",
		func(ctx context.Context) (bool, error) {
			return s.store.WriteLockStateIf(ctx, res, id, actor.ID, nil, nil)
		},
		func(current *State) error { return newUnlockPermissionError(&res, id, current) })
	if err != nil {
		return err
	}

	s.recorder.RecordReleased(res.Kind, OpRelease, 1)
	s.log.Debug("lock released",
		logger.String("resource_kind", string(res.Kind)),
		logger.String("resource_id", id),
		logger.String("user_id", actor.ID))
	return nil
}

// Update validates that actor may edit the resource and writes fields.
// Lock columns cannot be written this way.
func (s *Service) Update(ctx context.Context, res Resource, id string, actor User, fields map[string]any) (err error) {
	start := time.Now()
	defer func() { s.record(&res, OpUpdate, start, err) }()

	if len(fields) == 0 {
		return newStorageError(ErrNoFields, &res, id, OpUpdate, errors.CategoryValidation)
	}
	for column := range fields {
		if res.IsLockColumn(column) {
			return newStorageError(ErrLockColumnWrite, &res, id, OpUpdate, errors.CategoryValidation)
		}
	}

	if err := s.CheckEditable(ctx, res, id, actor); err != nil {
		return err
	}

	return s.guardedWrite(ctx, &res, id, actor.ID, "write_entity_fields",
		func(ctx context.Context) (bool, error) {
			return s.store.WriteEntityFields(ctx, res, id, actor.ID, fields)
		},
		func(current *State) error { return newEditLockError(&res, id, current) })
}

// Delete validates that actor may edit the resource and deletes it.
func (s *Service) Delete(ctx context.Context, res Resource, id string, actor User) (err error) {
	start := time.Now()
	defer func() { s.record(&res, OpDelete, start, err) }()

	if err := s.CheckEditable(ctx, res, id, actor); err != nil {
		return err
	}

	return s.guardedWrite(ctx, &res, id, actor.ID, "delete_entity",
		func(ctx context.Context) (bool, error) {
			return s.store.DeleteEntity(ctx, res, id, actor.ID)
		},
		func(current *State) error { return newEditLockError(&res, id, current) })
}

// ReleaseAllForUser clears every lock held by actor across all registered
// resource types, regardless of per-resource checks. A failing resource type
// does not stop the others; their errors are joined.
func (s *Service) ReleaseAllForUser(ctx context.Context, actor User) (BulkReleaseResult, error) {
	var (
		result BulkReleaseResult
		errs   []error
	)

	for i := range s.resources {
		res := &s.resources[i]
		start := time.Now()

		n, err := s.store.ClearLocksHeldBy(ctx, *res, actor.ID)
		if err != nil {
			err = newStorageError(err, res, "", "clear_locks_held_by", errors.CategoryLockRelease)
			s.record(res, OpBulkRelease, start, err)
			errs = append(errs, err)
			continue
		}
		s.record(res, OpBulkRelease, start, nil)
		s.recorder.RecordReleased(res.Kind, OpBulkRelease, n)

		result.Operations++
		result.Released += n
	}

	s.log.Info("released all locks for user",
		logger.String("user_id", actor.ID),
		logger.Int("operations", result.Operations),
		logger.Int64("released", result.Released))

	return result, errors.Join(errs...)
}

// ExpireBefore clears every lock acquired before cutoff. Used by the Sweeper.
func (s *Service) ExpireBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var (
		total int64
		errs  []error
	)

	for i := range s.resources {
		res := &s.resources[i]
		start := time.Now()

		n, err := s.store.ExpireLocks(ctx, *res, cutoff.UTC())
		if err != nil {
			err = newStorageError(err, res, "", "expire_locks", errors.CategoryLockSweep)
			s.record(res, OpSweep, start, err)
			errs = append(errs, err)
			continue
		}
		s.record(res, OpSweep, start, nil)
		if n > 0 {
			s.recorder.RecordReleased(res.Kind, OpSweep, n)
		}
		total += n
	}

	return total, errors.Join(errs...)
}

// ListLocks returns every held lock across all registered resource types.
func (s *Service) ListLocks(ctx context.Context) ([]HeldLock, error) {
	var locks []HeldLock
	for i := range s.resources {
		res := &s.resources[i]
		states, err := s.store.ListLocked(ctx, *res)
		if err != nil {
			return nil, newStorageError(err, res, "", "list_locked", errors.CategoryDatabase)
		}
		for _, st := range states {
			locks = append(locks, HeldLock{Kind: res.Kind, State: st})
		}
	}
	return locks, nil
}
