package entities

import (
	"github.com/google/uuid"
)

type Tag struct {
	ID    uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Name  string    `gorm:"uniqueIndex;size:200" json:"name"`
	Color string    `gorm:"uniqueIndex;size:7" json:"color"` // HEX, e.g. #E26C2D
	Slug  string    `gorm:"uniqueIndex;size:200" json:"slug"`

	Timestamp
}
