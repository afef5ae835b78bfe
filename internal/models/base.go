package models

import (
	"time"

	"github.com/google/uuid"
)

// BaseModel contains common fields for all stored records
type BaseModel struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Stamp assigns an ID when missing and refreshes the timestamps.
func (base *BaseModel) Stamp(now time.Time) {
	if base.ID == "" {
		base.ID = NewID()
	}
	if base.CreatedAt.IsZero() {
		base.CreatedAt = now
	}
	base.UpdatedAt = now
}

// NewID returns a fresh random identifier.
func NewID() string {
	return uuid.New().String()
}
