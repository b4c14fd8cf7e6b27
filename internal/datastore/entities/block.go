package entities

import (
	"time"

	"gorm.io/gorm"
)

// Block is a reusable text block inserted into quotes.
type Block struct {
	ID      string `gorm:"primaryKey;size:36" json:"id"`
	Name    string `gorm:"size:255;not null" json:"name"`
	Content string `gorm:"type:text" json:"content"`
	LockColumns
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName returns the table name for GORM.
func (Block) TableName() string {
	return "blocks"
}

// BeforeCreate assigns a UUID primary key.
func (b *Block) BeforeCreate(_ *gorm.DB) error {
	b.ID = newID(b.ID)
	return nil
}
