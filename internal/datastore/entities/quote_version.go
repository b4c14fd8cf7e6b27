package entities

import (
	"time"

	"gorm.io/gorm"
)

// Quote version statuses
const (
	QuoteStatusDraft    = "draft"
	QuoteStatusSent     = "sent"
	QuoteStatusAccepted = "accepted"
	QuoteStatusRejected = "rejected"
)

// QuoteVersion is one revision of a quote variant.
type QuoteVersion struct {
	ID      string `gorm:"primaryKey;size:36" json:"id"`
	Title   string `gorm:"size:255;not null" json:"title"`
	Content string `gorm:"type:text" json:"content"`
	Status  string `gorm:"size:32;default:draft" json:"status"`
	LockColumns
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName returns the table name for GORM.
func (QuoteVersion) TableName() string {
	return "quote_versions"
}

// BeforeCreate assigns a UUID primary key.
func (q *QuoteVersion) BeforeCreate(_ *gorm.DB) error {
	q.ID = newID(q.ID)
	return nil
}
