// internal/domain/auth/entity.go
package auth

import (
	"database/sql"
	"time"
)

// Roles understood by websocket handlers and HTTP route guards.
const (
	RoleAdmin  = "admin"
	RoleUser   = "user"
	RoleDevice = "device"
)

// DeviceCredential authenticates a device bridge or analyzer by shared secret.
type DeviceCredential struct {
	ID         int64        `json:"id" db:"id"`
	DeviceID   string       `json:"device_id" db:"device_id"`
	SecretHash string       `json:"-" db:"secret_hash"`
	Roles      []string     `json:"roles" db:"roles"`
	IsActive   bool         `json:"is_active" db:"is_active"`
	LastSeenAt sql.NullTime `json:"last_seen_at" db:"last_seen_at"`
	CreatedAt  time.Time    `json:"created_at" db:"created_at"`
}
