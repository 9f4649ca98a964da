package models

import "time"

type UserStatus string

const (
	UserActive    UserStatus = "active"
	UserSuspended UserStatus = "suspended"
)

type User struct {
	ID           int64      `gorm:"primaryKey" json:"id"`
	Email        string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name         string     `gorm:"size:200" json:"name"`
	PasswordHash string     `gorm:"size:255" json:"-"`
	Status       UserStatus `gorm:"size:16;default:active" json:"status"`
	IsSuperuser  bool       `gorm:"default:false" json:"is_superuser"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Groups       []Group    `gorm:"many2many:user_groups;" json:"groups,omitempty"`
}

// GroupIDs returns the ids of the loaded Groups association.
func (u User) GroupIDs() []int64 {
	ids := make([]int64, 0, len(u.Groups))
	for _, g := range u.Groups {
		ids = append(ids, g.ID)
	}
	return ids
}
