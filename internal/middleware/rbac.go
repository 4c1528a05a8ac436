package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exam-conduct/internal/model"
	"github.com/stemsi/exam-conduct/internal/response"
)

// RequirePermission checks that the admin JWT grants at least one of the
// given permissions.
func RequirePermission(perms ...model.Permission) gin.HandlerFunc {
	codes := make([]string, len(perms))
	for i, p := range perms {
		codes[i] = string(p)
	}

	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		if !claims.HasPermission(codes...) {
			response.AbortFail(c, http.StatusForbidden, response.ErrPermissionDenied)
			return
		}
		c.Next()
	}
}
