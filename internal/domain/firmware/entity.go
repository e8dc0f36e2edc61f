// internal/domain/firmware/entity.go
package firmware

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

type Firmware struct {
	ID           uuid.UUID      `json:"id" db:"id"`
	Version      string         `json:"version" db:"version"`
	Description  string         `json:"description" db:"description"`
	ReleaseNotes sql.NullString `json:"release_notes,omitempty" db:"release_notes"`
	IsStable     bool           `json:"is_stable" db:"is_stable"`
	FileSize     int64          `json:"file_size" db:"file_size"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
}
