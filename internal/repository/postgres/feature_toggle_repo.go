// internal/repository/postgres/feature_toggle_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"leaven-service/internal/domain/featuretoggle"
	xerrors "leaven-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type FeatureToggleRepository struct {
	db *pgxpool.Pool
}

func NewFeatureToggleRepository(db *pgxpool.Pool) *FeatureToggleRepository {
	return &FeatureToggleRepository{db: db}
}

const featureColumns = `id, name, COALESCE(description, ''), is_enabled, rollout_percentage, created_at, updated_at`

func scanFeature(row pgx.Row) (*featuretoggle.Feature, error) {
	var f featuretoggle.Feature
	err := row.Scan(&f.ID, &f.Name, &f.Description, &f.IsEnabled, &f.RolloutPercentage, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// GetByName returns xerrors.ErrNotFound when the feature does not exist.
func (r *FeatureToggleRepository) GetByName(ctx context.Context, name string) (*featuretoggle.Feature, error) {
	query := `SELECT ` + featureColumns + ` FROM features WHERE name = $1`

	f, err := scanFeature(r.db.QueryRow(ctx, query, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &xerrors.EntityNotFound{Entity: "Feature", ID: name}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feature: %w", err)
	}
	return f, nil
}

func (r *FeatureToggleRepository) List(ctx context.Context) ([]featuretoggle.Feature, error) {
	query := `SELECT ` + featureColumns + ` FROM features ORDER BY name`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list features: %w", err)
	}
	defer rows.Close()

	var features []featuretoggle.Feature
	for rows.Next() {
		f, err := scanFeature(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feature: %w", err)
		}
		features = append(features, *f)
	}
	return features, rows.Err()
}

// Upsert creates the feature or updates its enabled flag.
func (r *FeatureToggleRepository) Upsert(ctx context.Context, name string, enabled bool) (*featuretoggle.Feature, error) {
	query := `
		INSERT INTO features (name, is_enabled)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE
		SET is_enabled = EXCLUDED.is_enabled, updated_at = NOW()
		RETURNING ` + featureColumns

	f, err := scanFeature(r.db.QueryRow(ctx, query, name, enabled))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert feature: %w", err)
	}
	return f, nil
}

func (r *FeatureToggleRepository) SetRollout(ctx context.Context, featureID int64, percentage int) error {
	query := `UPDATE features SET rollout_percentage = $2, updated_at = NOW() WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, featureID, percentage)
	if err != nil {
		return fmt.Errorf("failed to set rollout: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

func (r *FeatureToggleRepository) ListUsers(ctx context.Context, featureID int64) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT user_id FROM feature_users WHERE feature_id = $1 ORDER BY user_id`, featureID)
	if err != nil {
		return nil, fmt.Errorf("failed to list feature users: %w", err)
	}
	defer rows.Close()

	users, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan feature users: %w", err)
	}
	return users, nil
}

func (r *FeatureToggleRepository) HasUser(ctx context.Context, featureID int64, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM feature_users WHERE feature_id = $1 AND user_id = $2)`,
		featureID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check feature user: %w", err)
	}
	return exists, nil
}

func (r *FeatureToggleRepository) AddUser(ctx context.Context, featureID int64, userID string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO feature_users (feature_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (feature_id, user_id) DO NOTHING
	`, featureID, userID)
	if err != nil {
		return fmt.Errorf("failed to add feature user: %w", err)
	}
	return nil
}

func (r *FeatureToggleRepository) RemoveUser(ctx context.Context, featureID int64, userID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM feature_users WHERE feature_id = $1 AND user_id = $2`, featureID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove feature user: %w", err)
	}
	return nil
}
