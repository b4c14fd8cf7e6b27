package entities

import (
	"time"

	"gorm.io/gorm"
)

// User is a portal user. Lock holders are referenced by ID.
type User struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	Email        string    `gorm:"size:255;uniqueIndex" json:"email"`
	APITokenHash string    `gorm:"size:72" json:"-"` // bcrypt hash of the API token secret
	CreatedAt    time.Time `json:"createdAt"`
}

// TableName returns the table name for GORM.
func (User) TableName() string {
	return "users"
}

// BeforeCreate assigns a UUID primary key.
func (u *User) BeforeCreate(_ *gorm.DB) error {
	u.ID = newID(u.ID)
	return nil
}

// All returns every model for auto-migration.
func All() []any {
	return []any{&User{}, &Article{}, &Block{}, &QuoteVersion{}, &SalesOpportunity{}}
}
