// internal/pkg/jwt/verifier.go
package jwt

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken wraps every verification failure.
var ErrInvalidToken = errors.New("invalid token")

const clockSkew = 30 * time.Second

type Verifier struct {
	pub    *rsa.PublicKey
	parser *jwt.Parser
}

// NewVerifier accepts RS256/384/512 tokens from issuer for audience. An
// empty issuer or audience is not checked.
func NewVerifier(pub *rsa.PublicKey, issuer, audience string) *Verifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(clockSkew),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}
	return &Verifier{pub: pub, parser: jwt.NewParser(opts...)}
}

// Verify checks signature, expiry, issuer, audience and subject.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	if v.pub == nil {
		return nil, fmt.Errorf("jwt verifier has nil public key")
	}

	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.pub, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: no subject", ErrInvalidToken)
	}
	return claims, nil
}

// VerifyAccessToken additionally rejects temporary and non-access tokens.
func (v *Verifier) VerifyAccessToken(tokenString string) (*Claims, error) {
	claims, err := v.Verify(tokenString)
	if err != nil {
		return nil, err
	}

	switch {
	case claims.Purpose != PurposeAccess:
		return nil, fmt.Errorf("%w: purpose %q is not %q", ErrInvalidToken, claims.Purpose, PurposeAccess)
	case claims.IsTemp:
		return nil, fmt.Errorf("%w: temporary token", ErrInvalidToken)
	}
	return claims, nil
}
