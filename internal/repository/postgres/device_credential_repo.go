// internal/repository/postgres/device_credential_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"leaven-service/internal/domain/auth"
	xerrors "leaven-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

type DeviceCredentialRepository struct {
	db *pgxpool.Pool
}

func NewDeviceCredentialRepository(db *pgxpool.Pool) *DeviceCredentialRepository {
	return &DeviceCredentialRepository{db: db}
}

// FindByDeviceID returns only active credentials.
func (r *DeviceCredentialRepository) FindByDeviceID(ctx context.Context, deviceID string) (*auth.DeviceCredential, error) {
	query := `
		SELECT id, device_id, secret_hash, roles, is_active, last_seen_at, created_at
		FROM device_credentials
		WHERE device_id = $1 AND is_active = TRUE
	`

	var cred auth.DeviceCredential
	err := r.db.QueryRow(ctx, query, deviceID).Scan(
		&cred.ID, &cred.DeviceID, &cred.SecretHash, pq.Array(&cred.Roles),
		&cred.IsActive, &cred.LastSeenAt, &cred.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find device credential: %w", err)
	}
	return &cred, nil
}

func (r *DeviceCredentialRepository) Create(ctx context.Context, cred *auth.DeviceCredential) error {
	query := `
		INSERT INTO device_credentials (device_id, secret_hash, roles, is_active)
		VALUES ($1, $2, $3, TRUE)
		RETURNING id, is_active, created_at
	`
	err := r.db.QueryRow(ctx, query, cred.DeviceID, cred.SecretHash, pq.Array(cred.Roles)).
		Scan(&cred.ID, &cred.IsActive, &cred.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create device credential: %w", err)
	}
	return nil
}

func (r *DeviceCredentialRepository) TouchLastSeen(ctx context.Context, deviceID string) error {
	_, err := r.db.Exec(ctx, `UPDATE device_credentials SET last_seen_at = NOW() WHERE device_id = $1`, deviceID)
	if err != nil {
		return fmt.Errorf("failed to update last seen: %w", err)
	}
	return nil
}
