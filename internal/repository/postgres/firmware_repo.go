// internal/repository/postgres/firmware_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"leaven-service/internal/domain/firmware"
	xerrors "leaven-service/internal/pkg/errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type FirmwareRepository struct {
	db *pgxpool.Pool
}

func NewFirmwareRepository(db *pgxpool.Pool) *FirmwareRepository {
	return &FirmwareRepository{db: db}
}

// GetByID retrieves a firmware build by ID
func (r *FirmwareRepository) GetByID(ctx context.Context, id uuid.UUID) (*firmware.Firmware, error) {
	query := `
		SELECT id, version, description, release_notes, is_stable, file_size, created_at
		FROM firmware_versions
		WHERE id = $1
	`

	var fw firmware.Firmware
	err := r.db.QueryRow(ctx, query, id).Scan(
		&fw.ID, &fw.Version, &fw.Description, &fw.ReleaseNotes,
		&fw.IsStable, &fw.FileSize, &fw.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find firmware: %w", err)
	}
	return &fw, nil
}
