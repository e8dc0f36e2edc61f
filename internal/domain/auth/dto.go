// internal/domain/auth/dto.go
package auth

import "time"

// IssuedToken is what the dev token tool prints.
type IssuedToken struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	UserID      string    `json:"user_id"`
	Roles       []string  `json:"roles"`
	JTI         string    `json:"jti"`
}
