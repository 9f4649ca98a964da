package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog records administrative changes to groups, users, and grants.
type AuditLog struct {
	ID            int64          `gorm:"primaryKey" json:"id"`
	UserID        int64          `gorm:"index" json:"user_id"`
	Action        string         `gorm:"size:200;not null" json:"action"` // e.g. "grants.replace", "groups.delete"
	ResourceType  string         `gorm:"size:100" json:"resource_type"`   // e.g. "group", "grant"
	ResourceID    int64          `gorm:"index" json:"resource_id"`
	Metadata      datatypes.JSON `gorm:"type:json" json:"metadata"`
	IP            string         `gorm:"size:64" json:"ip"`
	InitiatorName string         `gorm:"size:255" json:"initiator_name"`
	UserAgent     string         `gorm:"size:255" json:"user_agent"`
	CreatedAt     time.Time      `json:"created_at"`
}
