package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/wave-alert-api/pkg/errors"
	"github.com/noah-isme/wave-alert-api/pkg/response"
)

// TriggerAuth protects trigger routes with the shared scheduler secret.
// An unset secret rejects every call rather than leaving the routes open.
func TriggerAuth(secret string) gin.HandlerFunc {
	expected := []byte(secret)
	return func(c *gin.Context) {
		if len(expected) == 0 {
			response.Abort(c, appErrors.Clone(appErrors.ErrUnavailable, "trigger secret not configured"))
			return
		}

		header := c.GetHeader("Authorization")
		if header == "" {
			response.Abort(c, appErrors.ErrUnauthorized)
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Abort(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			return
		}

		if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(parts[1])), expected) != 1 {
			response.Abort(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid trigger secret"))
			return
		}

		c.Next()
	}
}
