package middleware

import (
	"github.com/gin-gonic/gin"

	"fundilink/internal/models"
	"fundilink/internal/services"
	"fundilink/internal/utils"
)

const principalKey = "principal"

// AuthRequired resolves the bearer token to a principal and puts it on the
// request context. Requests without a valid, active account are rejected
// with the same typed failures the websocket handshake uses.
func AuthRequired(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := utils.ExtractBearerToken(c.GetHeader("Authorization"))

		principal, err := authService.Authenticate(c.Request.Context(), token)
		if err != nil {
			utils.ServiceErrorResponse(c, err)
			c.Abort()
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

// RoleRequired restricts a route to the given roles. Must run after
// AuthRequired.
func RoleRequired(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := GetPrincipal(c)
		if principal == nil {
			utils.UnauthorizedResponse(c)
			c.Abort()
			return
		}

		for _, role := range roles {
			if principal.Role == role {
				c.Next()
				return
			}
		}

		utils.ForbiddenResponse(c)
		c.Abort()
	}
}

// GetPrincipal returns the authenticated principal or nil.
func GetPrincipal(c *gin.Context) *services.Principal {
	value, exists := c.Get(principalKey)
	if !exists {
		return nil
	}
	principal, ok := value.(*services.Principal)
	if !ok {
		return nil
	}
	return principal
}
