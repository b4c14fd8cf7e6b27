package entities

import (
	"time"

	"gorm.io/gorm"
)

// SalesOpportunity is a potential deal tracked before a quote is issued.
type SalesOpportunity struct {
	ID       string  `gorm:"primaryKey;size:36" json:"id"`
	Title    string  `gorm:"size:255;not null" json:"title"`
	Customer string  `gorm:"size:255" json:"customer"`
	Status   string  `gorm:"size:32" json:"status"`
	Amount   float64 `json:"amount"`
	LockColumns
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName returns the table name for GORM.
func (SalesOpportunity) TableName() string {
	return "sales_opportunities"
}

// BeforeCreate assigns a UUID primary key.
func (s *SalesOpportunity) BeforeCreate(_ *gorm.DB) error {
	s.ID = newID(s.ID)
	return nil
}
