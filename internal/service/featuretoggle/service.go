// internal/service/featuretoggle/service.go
package featuretoggle

import (
	"context"
	"fmt"
	"time"

	"leaven-service/internal/domain/featuretoggle"
	xerrors "leaven-service/internal/pkg/errors"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultCacheTTL = 5 * time.Minute

// Repository is the feature store. GetByName returns an error matching
// xerrors.ErrNotFound for unknown features.
type Repository interface {
	GetByName(ctx context.Context, name string) (*featuretoggle.Feature, error)
	List(ctx context.Context) ([]featuretoggle.Feature, error)
	Upsert(ctx context.Context, name string, enabled bool) (*featuretoggle.Feature, error)
	SetRollout(ctx context.Context, featureID int64, percentage int) error
	ListUsers(ctx context.Context, featureID int64) ([]string, error)
	HasUser(ctx context.Context, featureID int64, userID string) (bool, error)
	AddUser(ctx context.Context, featureID int64, userID string) error
	RemoveUser(ctx context.Context, featureID int64, userID string) error
}

// FeatureToggleService answers feature checks with a redis read-through
// cache in front of the repository. Unknown features are enabled.
type FeatureToggleService struct {
	repo   Repository
	cache  redis.UniversalClient
	ttl    time.Duration
	logger *zap.Logger
}

func NewFeatureToggleService(repo Repository, cache redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *FeatureToggleService {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeatureToggleService{
		repo:   repo,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

func featureKey(name string) string {
	return fmt.Sprintf("feature:%s", name)
}

func featureUserKey(name, userID string) string {
	return fmt.Sprintf("feature:%s:user:%s", name, userID)
}

// featureUsersKey indexes the per-user entries cached for a feature so they
// can be dropped without a keyspace scan, which a cluster only runs per node.
func featureUsersKey(name string) string {
	return fmt.Sprintf("feature:%s:users", name)
}

// IsEnabled reports the global flag of the feature.
func (s *FeatureToggleService) IsEnabled(ctx context.Context, name string) (bool, error) {
	return s.cached(ctx, featureKey(name), "", func() (bool, error) {
		f, err := s.repo.GetByName(ctx, name)
		if xerrors.Is(err, xerrors.ErrNotFound) {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		return f.IsEnabled, nil
	})
}

// IsEnabledForUser also honours explicit user opt-ins and the rollout
// percentage. A user's rollout bucket is stable for a given feature.
func (s *FeatureToggleService) IsEnabledForUser(ctx context.Context, name, userID string) (bool, error) {
	return s.cached(ctx, featureUserKey(name, userID), featureUsersKey(name), func() (bool, error) {
		f, err := s.repo.GetByName(ctx, name)
		if xerrors.Is(err, xerrors.ErrNotFound) {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		if !f.IsEnabled {
			return false, nil
		}

		listed, err := s.repo.HasUser(ctx, f.ID, userID)
		if err != nil {
			return false, err
		}
		if listed {
			return true, nil
		}

		rollout := f.Rollout()
		if rollout < 0 {
			return true, nil
		}
		return InRollout(name, userID, rollout), nil
	})
}

// InRollout buckets the user into 0..99 for the feature.
func InRollout(feature, userID string, percentage int) bool {
	bucket := xxhash.Sum64String(feature+":"+userID) % 100
	return int(bucket) < percentage
}

func (s *FeatureToggleService) GetAllFeatures(ctx context.Context) ([]featuretoggle.FeatureResponse, error) {
	features, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]featuretoggle.FeatureResponse, 0, len(features))
	for i := range features {
		f := &features[i]
		users, err := s.repo.ListUsers(ctx, f.ID)
		if err != nil {
			return nil, err
		}
		if users == nil {
			users = []string{}
		}

		resp := featuretoggle.FeatureResponse{
			Name:        f.Name,
			Description: f.Description,
			IsEnabled:   f.IsEnabled,
			Users:       users,
			UpdatedAt:   f.UpdatedAt,
		}
		if rollout := f.Rollout(); rollout >= 0 {
			resp.RolloutPercentage = &rollout
		}
		out = append(out, resp)
	}
	return out, nil
}

// SetFeatureEnabled creates the feature when it does not exist yet.
func (s *FeatureToggleService) SetFeatureEnabled(ctx context.Context, name string, enabled bool) error {
	if name == "" {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "feature name is required")
	}
	if _, err := s.repo.Upsert(ctx, name, enabled); err != nil {
		return err
	}
	s.invalidate(ctx, name)

	s.logger.Info("feature toggled",
		zap.String("feature", name),
		zap.Bool("enabled", enabled),
	)
	return nil
}

func (s *FeatureToggleService) SetRolloutPercentage(ctx context.Context, name string, percentage int) error {
	if percentage < 0 || percentage > 100 {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "rollout percentage must be between 0 and 100")
	}
	f, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return err
	}
	if err := s.repo.SetRollout(ctx, f.ID, percentage); err != nil {
		return err
	}
	s.invalidate(ctx, name)
	return nil
}

func (s *FeatureToggleService) AddUserToFeature(ctx context.Context, name, userID string) error {
	f, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return err
	}
	if err := s.repo.AddUser(ctx, f.ID, userID); err != nil {
		return err
	}
	s.dropUser(ctx, name, userID)
	return nil
}

func (s *FeatureToggleService) RemoveUserFromFeature(ctx context.Context, name, userID string) error {
	f, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return err
	}
	if err := s.repo.RemoveUser(ctx, f.ID, userID); err != nil {
		return err
	}
	s.dropUser(ctx, name, userID)
	return nil
}

// cached serves key from redis, falling back to load on a miss. A non-empty
// index records key so invalidate can find it. Cache failures degrade to
// uncached reads.
func (s *FeatureToggleService) cached(ctx context.Context, key, index string, load func() (bool, error)) (bool, error) {
	val, err := s.cache.Get(ctx, key).Result()
	switch {
	case err == nil:
		return val == "1", nil
	case err != redis.Nil:
		s.logger.Warn("feature cache read failed", zap.String("key", key), zap.Error(err))
	}

	enabled, err := load()
	if err != nil {
		return false, err
	}

	flag := "0"
	if enabled {
		flag = "1"
	}
	// refreshing the index ttl keeps it alive as long as its newest entry
	_, err = s.cache.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, flag, s.ttl)
		if index != "" {
			pipe.SAdd(ctx, index, key)
			pipe.Expire(ctx, index, s.ttl)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("feature cache write failed", zap.String("key", key), zap.Error(err))
	}
	return enabled, nil
}

// invalidate drops the global entry and every per-user entry of the feature.
func (s *FeatureToggleService) invalidate(ctx context.Context, name string) {
	index := featureUsersKey(name)
	keys := []string{featureKey(name), index}

	members, err := s.cache.SMembers(ctx, index).Result()
	if err != nil {
		s.logger.Warn("feature cache index read failed", zap.String("feature", name), zap.Error(err))
	}
	keys = append(keys, members...)

	s.drop(ctx, keys...)
}

func (s *FeatureToggleService) dropUser(ctx context.Context, name, userID string) {
	key := featureUserKey(name, userID)
	s.drop(ctx, key)
	if err := s.cache.SRem(ctx, featureUsersKey(name), key).Err(); err != nil {
		s.logger.Warn("feature cache index update failed", zap.String("key", key), zap.Error(err))
	}
}

// drop deletes keys one command each; the keys hash to different cluster
// slots, so a single multi-key DEL would be rejected there.
func (s *FeatureToggleService) drop(ctx context.Context, keys ...string) {
	_, err := s.cache.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range keys {
			pipe.Del(ctx, key)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("feature cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}
