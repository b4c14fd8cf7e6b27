package lock

import (
	"context"
	"time"
)

// Store is the storage adapter for lock columns. Implementations must keep
// blocked and blocked_by co-null: every write sets both or clears both.
//
// Methods taking an actorID apply their write only when the row is unlocked
// or locked by actorID, in a single statement, and report whether a row was
// affected. A false result means the row is missing or held by someone else.
type Store interface {
	// ReadLockState returns the lock state of one row, or ErrRowNotFound.
	ReadLockState(ctx context.Context, res Resource, id string) (*State, error)

	// WriteLockState unconditionally overwrites the lock columns. Returns
	// ErrRowNotFound if no row matches.
	WriteLockState(ctx context.Context, res Resource, id string, blocked *time.Time, blockedBy *string) error

	// WriteLockStateIf writes the lock columns if actorID may edit the row.
	WriteLockStateIf(ctx context.Context, res Resource, id, actorID string, blocked *time.Time, blockedBy *string) (bool, error)

	// WriteEntityFields updates non-lock columns if actorID may edit the row.
	WriteEntityFields(ctx context.Context, res Resource, id, actorID string, fields map[string]any) (bool, error)

	// DeleteEntity deletes the row if actorID may edit it.
	DeleteEntity(ctx context.Context, res Resource, id, actorID string) (bool, error)

	// ClearLocksHeldBy releases every lock of one resource type held by userID.
	ClearLocksHeldBy(ctx context.Context, res Resource, userID string) (int64, error)

	// ExpireLocks releases every lock of one resource type acquired before the cutoff.
	ExpireLocks(ctx context.Context, res Resource, before time.Time) (int64, error)

	// ListLocked returns all currently locked rows of one resource type.
	ListLocked(ctx context.Context, res Resource) ([]State, error)
}

// Recorder receives lock operation outcomes for metrics.
type Recorder interface {
	RecordOperation(kind Kind, operation, outcome string, duration time.Duration)
	RecordReleased(kind Kind, reason string, count int64)
}

// Operation names passed to Recorder
const (
	OpCheck       = "check"
	OpStatus      = "status"
	OpAcquire     = "acquire"
	OpForce       = "force_acquire"
	OpRelease     = "release"
	OpUpdate      = "update"
	OpDelete      = "delete"
	OpBulkRelease = "bulk_release"
	OpSweep       = "sweep"
)

// Outcomes passed to Recorder
const (
	OutcomeOK       = "ok"
	OutcomeConflict = "conflict"
	OutcomeNotFound = "not_found"
	OutcomeDenied   = "denied"
	OutcomeError    = "error"
)

type noopRecorder struct{}

func (noopRecorder) RecordOperation(Kind, string, string, time.Duration) {}
func (noopRecorder) RecordReleased(Kind, string, int64)                  {}
