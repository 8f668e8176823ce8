package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Report is a finding submitted by a user against a bounty.
type Report struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	UserID    string    `gorm:"size:36;index;not null" json:"user_id"`
	BountyID  string    `gorm:"size:36;index;not null" json:"bounty_id"`
	Bounty    Bounty    `gorm:"foreignKey:BountyID" json:"bounty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUID when the caller did not provide one.
func (r *Report) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
