package entities

import (
	"time"

	"github.com/google/uuid"
)

// LockColumns is embedded by every lockable entity. Blocked and BlockedBy
// are always both NULL or both set.
type LockColumns struct {
	Blocked   *time.Time `gorm:"index" json:"blocked"`
	BlockedBy *string    `gorm:"size:36;index" json:"blockedBy"`
}

// newID returns a fresh primary key when none was supplied.
func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}
