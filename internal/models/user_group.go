package models

// UserGroup is the join between users and groups. The `user_groups` table
// uses the composite primary key (user_id, group_id).
type UserGroup struct {
	UserID  int64 `gorm:"primaryKey"`
	GroupID int64 `gorm:"primaryKey"`
}
