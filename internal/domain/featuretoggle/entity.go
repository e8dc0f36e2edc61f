// internal/domain/featuretoggle/entity.go
package featuretoggle

import (
	"database/sql"
	"time"
)

type Feature struct {
	ID                int64         `json:"id" db:"id"`
	Name              string        `json:"name" db:"name"`
	Description       string        `json:"description,omitempty" db:"description"`
	IsEnabled         bool          `json:"is_enabled" db:"is_enabled"`
	RolloutPercentage sql.NullInt32 `json:"-" db:"rollout_percentage"`
	CreatedAt         time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at" db:"updated_at"`
}

// Rollout returns the rollout percentage, or -1 when none is set.
func (f *Feature) Rollout() int {
	if !f.RolloutPercentage.Valid {
		return -1
	}
	return int(f.RolloutPercentage.Int32)
}

// FeatureUser opts one user into a feature regardless of rollout.
type FeatureUser struct {
	FeatureID int64     `json:"feature_id" db:"feature_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// DTOs

type FeatureResponse struct {
	Name              string    `json:"name"`
	Description       string    `json:"description,omitempty"`
	IsEnabled         bool      `json:"is_enabled"`
	RolloutPercentage *int      `json:"rollout_percentage,omitempty"`
	Users             []string  `json:"users"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type SetEnabledRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

type SetRolloutRequest struct {
	Percentage *int `json:"percentage" binding:"required,min=0,max=100"`
}
