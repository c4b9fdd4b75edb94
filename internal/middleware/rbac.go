package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/class-record-api/internal/models"
	appErrors "github.com/noah-isme/class-record-api/pkg/errors"
	"github.com/noah-isme/class-record-api/pkg/response"
)

// SelfParam is the route parameter compared against the caller's user id
// when "SELF" is allowed.
const SelfParam = "studentId"

// RBAC enforces role-based access control for routes. "SELF" admits a caller
// whose user id matches the studentId route parameter.
func RBAC(allowed ...string) gin.HandlerFunc {
	allowSelf := false
	allowedRoles := make(map[models.UserRole]struct{})
	for _, a := range allowed {
		if a == "SELF" {
			allowSelf = true
			continue
		}
		allowedRoles[models.UserRole(a)] = struct{}{}
	}

	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims, ok := claimsValue.(*models.JWTClaims)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, ok := allowedRoles[claims.Role]; ok {
			c.Next()
			return
		}

		if allowSelf {
			if targetID := c.Param(SelfParam); targetID != "" && targetID == claims.UserID {
				c.Next()
				return
			}
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

// RequireRoles is a helper that accepts a list of roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make([]string, len(roles))
	for i, r := range roles {
		allowed[i] = string(r)
	}
	return RBAC(allowed...)
}

// Staff admits the roles that may read and edit every class record.
func Staff() gin.HandlerFunc {
	return RequireRoles(models.RoleAdmin, models.RoleCoordinator, models.RoleInstructor)
}

// StaffOrSelf additionally admits a student reading their own records.
func StaffOrSelf() gin.HandlerFunc {
	return RBAC(string(models.RoleAdmin), string(models.RoleCoordinator), string(models.RoleInstructor), "SELF")
}
