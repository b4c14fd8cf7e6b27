package entities

import (
	"time"

	"gorm.io/gorm"
)

// Article is a catalogue item that can be priced into quotes.
type Article struct {
	ID           string  `gorm:"primaryKey;size:36" json:"id"`
	Number       string  `gorm:"size:64;index" json:"number"`
	Title        string  `gorm:"size:255;not null" json:"title"`
	Description  string  `gorm:"type:text" json:"description"`
	Unit         string  `gorm:"size:32" json:"unit"`
	Price        float64 `json:"price"`
	Calculations string  `gorm:"type:text" json:"calculations"` // JSON document edited as a whole
	LockColumns
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName returns the table name for GORM.
func (Article) TableName() string {
	return "articles"
}

// BeforeCreate assigns a UUID primary key.
func (a *Article) BeforeCreate(_ *gorm.DB) error {
	a.ID = newID(a.ID)
	return nil
}
