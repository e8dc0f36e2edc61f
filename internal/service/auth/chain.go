// internal/service/auth/chain.go
package auth

import (
	"context"

	ws "leaven-service/internal/websocket"
)

// ChainAuthenticator tries each authenticator in order; the first one that
// authenticates wins. An error stops the chain.
type ChainAuthenticator []ws.Authenticator

var _ ws.Authenticator = ChainAuthenticator(nil)

func NewChainAuthenticator(authenticators ...ws.Authenticator) ChainAuthenticator {
	return ChainAuthenticator(authenticators)
}

func (c ChainAuthenticator) Authenticate(ctx context.Context, conn ws.Connection, token string) (ws.AuthResult, error) {
	for _, a := range c {
		if a == nil {
			continue
		}
		res, err := a.Authenticate(ctx, conn, token)
		if err != nil {
			return ws.Unauthenticated(), err
		}
		if res.IsAuthenticated {
			return res, nil
		}
	}
	return ws.Unauthenticated(), nil
}
