package model

import "time"

const (
	AuditActionRegistered = "user.registered"
	AuditActionLoggedIn   = "user.logged_in"
	AuditActionUpdated    = "user.updated"
)

type AuditEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Action    string    `gorm:"size:32;not null;index" json:"action"`
	IP        string    `gorm:"size:64" json:"ip"`
	CreatedAt time.Time `json:"created_at"`
}
