// internal/pkg/session/blacklist.go
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Blacklist records revoked token ids until the token would have expired anyway.
type Blacklist struct {
	client redis.UniversalClient
}

func NewBlacklist(client redis.UniversalClient) *Blacklist {
	return &Blacklist{client: client}
}

// IsTokenBlacklisted checks if a token is blacklisted
func (b *Blacklist) IsTokenBlacklisted(ctx context.Context, jti string) (bool, error) {
	n, err := b.client.Exists(ctx, blacklistKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check blacklist: %w", err)
	}
	return n > 0, nil
}

// BlacklistToken revokes jti for ttl. A non-positive ttl is a no-op since
// the token has already expired.
func (b *Blacklist) BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := b.client.Set(ctx, blacklistKey(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to blacklist token: %w", err)
	}
	return nil
}

func blacklistKey(jti string) string {
	return fmt.Sprintf("blacklist:%s", jti)
}
