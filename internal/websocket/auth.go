// internal/websocket/auth.go
package websocket

import (
	"context"
	"fmt"
	"strings"
)

// AuthPolicy is the process-wide default stance on authentication.
type AuthPolicy int

const (
	// PolicyBlacklist requires authentication unless a handler allows anonymous access.
	PolicyBlacklist AuthPolicy = iota
	// PolicyWhitelist requires authentication only where a handler asks for it.
	PolicyWhitelist
)

func (p AuthPolicy) String() string {
	switch p {
	case PolicyBlacklist:
		return "blacklist"
	case PolicyWhitelist:
		return "whitelist"
	default:
		return fmt.Sprintf("AuthPolicy(%d)", int(p))
	}
}

// ParseAuthPolicy accepts "blacklist" or "whitelist" in any case.
func ParseAuthPolicy(s string) (AuthPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "blacklist":
		return PolicyBlacklist, nil
	case "whitelist":
		return PolicyWhitelist, nil
	default:
		return PolicyBlacklist, fmt.Errorf("unknown auth policy %q", s)
	}
}

// RequiresAuth decides whether d must be called by an authenticated identity.
func (p AuthPolicy) RequiresAuth(d *Descriptor) bool {
	if d.AllowAnonymous {
		return false
	}
	if p == PolicyWhitelist {
		return d.RequireAuth
	}
	return true
}

// AuthResult is produced per dispatch and never cached across messages.
type AuthResult struct {
	IsAuthenticated bool
	UserID          string
	Roles           []string
}

// Unauthenticated is the result for a missing or rejected credential.
func Unauthenticated() AuthResult {
	return AuthResult{}
}

// HasAnyRole matches roles case-insensitively. An empty list accepts any
// authenticated identity.
func (a AuthResult) HasAnyRole(roles ...string) bool {
	if !a.IsAuthenticated {
		return false
	}
	if len(roles) == 0 {
		return true
	}
	for _, want := range roles {
		for _, have := range a.Roles {
			if strings.EqualFold(want, have) {
				return true
			}
		}
	}
	return false
}

// Authenticator turns an opaque bearer credential into an AuthResult.
// A rejected credential is an unauthenticated result, not an error;
// errors are reserved for failures of the authenticator itself.
type Authenticator interface {
	Authenticate(ctx context.Context, conn Connection, token string) (AuthResult, error)
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context, conn Connection, token string) (AuthResult, error)

func (f AuthenticatorFunc) Authenticate(ctx context.Context, conn Connection, token string) (AuthResult, error) {
	return f(ctx, conn, token)
}

type authContextKey struct{}

// ContextWithAuth stores the AuthResult seen by middleware and handlers.
func ContextWithAuth(ctx context.Context, auth AuthResult) context.Context {
	return context.WithValue(ctx, authContextKey{}, auth)
}

// AuthFromContext returns the AuthResult of the current dispatch.
func AuthFromContext(ctx context.Context) (AuthResult, bool) {
	auth, ok := ctx.Value(authContextKey{}).(AuthResult)
	return auth, ok
}
