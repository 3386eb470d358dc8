package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-attendance-api/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
	"github.com/noah-isme/sma-attendance-api/pkg/response"
)

// RequireRoles lets the request through when the caller holds one of roles.
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	allowed := roleSet(roles)
	return func(c *gin.Context) {
		if !authorize(c, allowed) {
			return
		}
		c.Next()
	}
}

// Guard authenticates and checks roles when enabled and is a no-op otherwise.
func Guard(enabled bool, validator TokenValidator, roles ...models.Role) gin.HandlerFunc {
	if !enabled || validator == nil {
		return func(c *gin.Context) { c.Next() }
	}
	allowed := roleSet(roles)
	return func(c *gin.Context) {
		if !authenticate(c, validator) || !authorize(c, allowed) {
			return
		}
		c.Next()
	}
}

func roleSet(roles []models.Role) map[models.Role]struct{} {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return allowed
}

// authorize aborts with 401 without claims and 403 when the role is not allowed.
func authorize(c *gin.Context, allowed map[models.Role]struct{}) bool {
	claims, ok := CurrentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		c.Abort()
		return false
	}
	if _, ok := allowed[claims.Role]; !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "role "+string(claims.Role)+" may not perform this action"))
		c.Abort()
		return false
	}
	return true
}
