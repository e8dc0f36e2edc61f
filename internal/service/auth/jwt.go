// internal/service/auth/jwt.go
package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	xerrors "leaven-service/internal/pkg/errors"
	"leaven-service/internal/pkg/jwt"
	ws "leaven-service/internal/websocket"

	"go.uber.org/zap"
)

const bearerPrefix = "Bearer "

type TokenVerifier interface {
	VerifyAccessToken(token string) (*jwt.Claims, error)
}

// Revocations is the token blacklist.
type Revocations interface {
	IsTokenBlacklisted(ctx context.Context, jti string) (bool, error)
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
}

// JWTAuthenticator accepts RS256 access tokens that have not been revoked.
type JWTAuthenticator struct {
	verifier    TokenVerifier
	revocations Revocations
	logger      *zap.Logger
}

var _ ws.Authenticator = (*JWTAuthenticator)(nil)

func NewJWTAuthenticator(verifier TokenVerifier, revocations Revocations, logger *zap.Logger) *JWTAuthenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JWTAuthenticator{
		verifier:    verifier,
		revocations: revocations,
		logger:      logger,
	}
}

func stripBearer(token string) string {
	token = strings.TrimSpace(token)
	if len(token) >= len(bearerPrefix) && strings.EqualFold(token[:len(bearerPrefix)], bearerPrefix) {
		return strings.TrimSpace(token[len(bearerPrefix):])
	}
	return token
}

// Authenticate returns an unauthenticated result for bad or revoked tokens.
// Only a blacklist lookup failure is reported as an error.
func (a *JWTAuthenticator) Authenticate(ctx context.Context, _ ws.Connection, token string) (ws.AuthResult, error) {
	claims, err := a.claims(ctx, token)
	if err != nil || claims == nil {
		return ws.Unauthenticated(), err
	}
	return ws.AuthResult{
		IsAuthenticated: true,
		UserID:          claims.UserID(),
		Roles:           claims.Roles,
	}, nil
}

func (a *JWTAuthenticator) claims(ctx context.Context, token string) (*jwt.Claims, error) {
	raw := stripBearer(token)
	if raw == "" {
		return nil, nil
	}

	claims, err := a.verifier.VerifyAccessToken(raw)
	if err != nil {
		a.logger.Debug("access token rejected", zap.Error(err))
		return nil, nil
	}

	if a.revocations != nil {
		revoked, err := a.revocations.IsTokenBlacklisted(ctx, claims.ID)
		if err != nil {
			return nil, err
		}
		if revoked {
			a.logger.Debug("revoked access token", zap.String("jti", claims.ID))
			return nil, nil
		}
	}
	return claims, nil
}

// Revoke blacklists a valid token for the rest of its lifetime.
func (a *JWTAuthenticator) Revoke(ctx context.Context, token string) error {
	if a.revocations == nil {
		return fmt.Errorf("token revocation is not configured")
	}
	claims, err := a.verifier.VerifyAccessToken(stripBearer(token))
	if err != nil {
		return xerrors.Wrap(xerrors.ErrInvalidInput, fmt.Sprintf("invalid token: %v", err))
	}

	var ttl time.Duration
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if err := a.revocations.BlacklistToken(ctx, claims.ID, ttl); err != nil {
		return err
	}

	a.logger.Info("access token revoked",
		zap.String("user_id", claims.UserID()),
		zap.String("jti", claims.ID),
	)
	return nil
}
