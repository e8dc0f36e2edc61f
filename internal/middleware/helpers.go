// internal/middleware/helpers.go
package middleware

import "github.com/gin-gonic/gin"

// GetUserID returns the authenticated caller's id.
func GetUserID(c *gin.Context) (string, bool) {
	v, exists := c.Get(ctxUserID)
	if !exists {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

// MustGetUserID gets the user id from context or panics
func MustGetUserID(c *gin.Context) string {
	id, exists := GetUserID(c)
	if !exists {
		panic("user_id not found in context")
	}
	return id
}

// GetToken returns the raw credential of the request.
func GetToken(c *gin.Context) string {
	return c.GetString(ctxToken)
}

// GetRoles gets user roles from context
func GetRoles(c *gin.Context) []string {
	roles, exists := c.Get(ctxRoles)
	if !exists {
		return []string{}
	}

	rolesList, ok := roles.([]string)
	if !ok {
		return []string{}
	}

	return rolesList
}

// IsAuthenticated checks if request is authenticated
func IsAuthenticated(c *gin.Context) bool {
	_, exists := c.Get(ctxUserID)
	return exists
}
