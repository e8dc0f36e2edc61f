// internal/pkg/jwt/generator.go
package jwt

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

type Generator struct {
	priv     *rsa.PrivateKey
	issuer   string
	audience string
	kid      string // key id for rotation
	Ttl      time.Duration
}

func NewGenerator(priv *rsa.PrivateKey, issuer, audience, kid string, ttl time.Duration) *Generator {
	return &Generator{
		priv:     priv,
		issuer:   issuer,
		audience: audience,
		kid:      kid,
		Ttl:      ttl,
	}
}

// Generate signs a token for userID and returns it with its jti.
func (g *Generator) Generate(userID string, roles []string, device, purpose string, ttl time.Duration) (string, string, error) {
	if g.priv == nil {
		return "", "", fmt.Errorf("jwt generator has nil private key")
	}
	if userID == "" {
		return "", "", fmt.Errorf("jwt subject is required")
	}
	if ttl <= 0 {
		ttl = g.Ttl
	}

	now := time.Now()
	jti := ulid.Make().String()

	claims := &Claims{
		Roles:   roles,
		Device:  device,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.issuer,
			Subject:   userID,
			Audience:  []string{g.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        jti,
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if g.kid != "" {
		tok.Header["kid"] = g.kid
	}

	signed, err := tok.SignedString(g.priv)
	return signed, jti, err
}

// GenerateAccessToken issues a token accepted by the websocket and HTTP guards.
func (g *Generator) GenerateAccessToken(userID string, roles []string, device string) (string, string, error) {
	return g.Generate(userID, roles, device, PurposeAccess, g.Ttl)
}
