package lock

import (
	"fmt"
	"time"

	"github.com/tphakala/quotedesk/internal/errors"
)

// Sentinel errors for lock storage and validation.
var (
	// ErrRowNotFound is returned by Store implementations when no row matches the id.
	ErrRowNotFound = errors.NewStd("lockable row not found")

	// ErrLockColumnWrite rejects entity updates that try to set lock columns.
	ErrLockColumnWrite = errors.NewStd("lock columns cannot be written as entity fields")

	// ErrNoFields rejects entity updates without any field.
	ErrNoFields = errors.NewStd("no fields to update")

	// ErrContended is returned when a guarded write keeps failing while the row
	// appears editable, which means other writers are racing on it.
	ErrContended = errors.NewStd("resource is being modified concurrently")
)

// NotFoundError reports a missing resource.
type NotFoundError struct {
	Kind       Kind
	ResourceID string
	Message    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s (%s %s)", e.Message, e.Kind, e.ResourceID)
}

// ErrorCategory implements errors.CategorizedError.
func (e *NotFoundError) ErrorCategory() errors.ErrorCategory { return errors.CategoryNotFound }

// EditLockError reports a guarded write rejected because another user holds the lock.
type EditLockError struct {
	Kind         Kind
	ResourceID   string
	Message      string
	LockedBy     string
	LockedByName string
	LockedAt     time.Time
}

func (e *EditLockError) Error() string {
	return fmt.Sprintf("%s (%s %s locked by %s since %s)",
		e.Message, e.Kind, e.ResourceID, e.LockedBy, e.LockedAt.Format(time.RFC3339))
}

// ErrorCategory implements errors.CategorizedError.
func (e *EditLockError) ErrorCategory() errors.ErrorCategory { return errors.CategoryConflict }

// LockConflictError reports an unforced acquire of a lock held by another user.
type LockConflictError struct {
	Kind         Kind
	ResourceID   string
	Message      string
	LockedBy     string
	LockedByName string
}

func (e *LockConflictError) Error() string {
	return fmt.Sprintf("%s (%s %s locked by %s)", e.Message, e.Kind, e.ResourceID, e.LockedBy)
}

// ErrorCategory implements errors.CategorizedError.
func (e *LockConflictError) ErrorCategory() errors.ErrorCategory { return errors.CategoryConflict }

// UnlockPermissionError reports a release attempt by someone other than the holder.
type UnlockPermissionError struct {
	Kind       Kind
	ResourceID string
	Message    string
	LockedBy   string
}

func (e *UnlockPermissionError) Error() string {
	return fmt.Sprintf("%s (%s %s locked by %s)", e.Message, e.Kind, e.ResourceID, e.LockedBy)
}

// ErrorCategory implements errors.CategorizedError.
func (e *UnlockPermissionError) ErrorCategory() errors.ErrorCategory {
	return errors.CategoryAuthorization
}

func newNotFoundError(res *Resource, id string) error {
	return errors.New(&NotFoundError{Kind: res.Kind, ResourceID: id, Message: res.Messages.NotFound}).
		Component("locks").
		Category(errors.CategoryNotFound).
		ResourceContext(string(res.Kind), id).
		Build()
}

func newEditLockError(res *Resource, id string, state *State) error {
	lockedAt := time.Time{}
	if state.Blocked != nil {
		lockedAt = *state.Blocked
	}
	return errors.New(&EditLockError{
		Kind:         res.Kind,
		ResourceID:   id,
		Message:      res.Messages.Locked,
		LockedBy:     state.holder(),
		LockedByName: state.holderName(),
		LockedAt:     lockedAt,
	}).
		Component("locks").
		Category(errors.CategoryConflict).
		ResourceContext(string(res.Kind), id).
		Context("locked_by", state.holder()).
		Build()
}

func newLockConflictError(res *Resource, id string, state *State) error {
	return errors.New(&LockConflictError{
		Kind:         res.Kind,
		ResourceID:   id,
		Message:      res.Messages.Conflict,
		LockedBy:     state.holder(),
		LockedByName: state.holderName(),
	}).
		Component("locks").
		Category(errors.CategoryConflict).
		ResourceContext(string(res.Kind), id).
		Context("locked_by", state.holder()).
		Build()
}

func newUnlockPermissionError(res *Resource, id string, state *State) error {
	return errors.New(&UnlockPermissionError{
		Kind:       res.Kind,
		ResourceID: id,
		Message:    res.Messages.UnlockDenied,
		LockedBy:   state.holder(),
	}).
		Component("locks").
		Category(errors.CategoryAuthorization).
		ResourceContext(string(res.Kind), id).
		Build()
}

func newStorageError(err error, res *Resource, id, operation string, category errors.ErrorCategory) error {
	return errors.New(err).
		Component("locks").
		Category(category).
		ResourceContext(string(res.Kind), id).
		Context("operation", operation).
		Build()
}
