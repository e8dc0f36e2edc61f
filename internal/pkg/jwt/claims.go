// internal/pkg/jwt/claims.go
package jwt

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Token purposes carried in the "purpose" claim.
const (
	PurposeAccess = "access"
	PurposeDevice = "device"
)

// Claims carries the caller identity. The user id travels in Subject.
type Claims struct {
	Roles   []string `json:"roles,omitempty"`
	Device  string   `json:"device,omitempty"`
	IsTemp  bool     `json:"is_temp"`
	Purpose string   `json:"purpose"`
	jwt.RegisteredClaims
}

// UserID is the subject of the token.
func (c *Claims) UserID() string {
	return c.Subject
}

// HasRole matches case-insensitively.
func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

func (c *Claims) IsAdmin() bool {
	return c.HasRole("admin")
}
