// internal/websocket/handler/errors.go
package handler

import (
	"fmt"

	wstypes "leaven-service/internal/domain/websocket"
	xerrors "leaven-service/internal/pkg/errors"
	ws "leaven-service/internal/websocket"
)

// ErrorMapper adds the domain error types to the default mapping.
type ErrorMapper struct {
	fallback ws.ErrorMapper
}

func NewErrorMapper() *ErrorMapper {
	return &ErrorMapper{fallback: ws.DefaultErrorMapper{}}
}

func (m *ErrorMapper) MapError(err error) (wstypes.ErrorCode, string) {
	var (
		rule  *xerrors.BusinessRuleViolation
		nf    *xerrors.EntityNotFound
		authn *xerrors.AuthenticationError
		authz *xerrors.AuthorizationError
	)

	switch {
	case xerrors.As(err, &rule):
		return wstypes.CodeValidationError, fmt.Sprintf("Business rule violated: %s", rule.Rule)
	case xerrors.As(err, &nf):
		return wstypes.CodeValidationError, fmt.Sprintf("Entity not found: %s with ID %s", nf.Entity, nf.ID)
	case xerrors.As(err, &authn):
		return wstypes.CodeUnauthorized, fmt.Sprintf("Authentication failed: %s", authn.Reason)
	case xerrors.As(err, &authz):
		return wstypes.CodeForbidden, fmt.Sprintf("Access denied. Required permission: %s", authz.Permission)
	default:
		return m.fallback.MapError(err)
	}
}
