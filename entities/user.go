package entities

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Email     string    `gorm:"uniqueIndex;size:254" json:"email"`
	Username  string    `gorm:"size:150" json:"username"`
	FirstName string    `gorm:"size:150" json:"first_name"`
	LastName  string    `gorm:"size:150" json:"last_name"`
	Password  string    `json:"-"`
	Role      string    `json:"role"`

	Recipes []*Recipe `gorm:"foreignKey:AuthorID"`
	Timestamp
}

// Follow is a directed subscription: user follows author.
type Follow struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	UserID    uuid.UUID `gorm:"uniqueIndex:idx_follow_pair" json:"user_id"`
	AuthorID  uuid.UUID `gorm:"uniqueIndex:idx_follow_pair" json:"author_id"`
	CreatedAt time.Time `gorm:"type:timestamp" json:"created_at"`

	User   *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Author *User `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE"`
}
