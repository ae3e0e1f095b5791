package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cyberkey/cyberkey-backend/internal/crypto"
)

// SchedulerTokenHeader authenticates calls from an external scheduler.
const SchedulerTokenHeader = "X-Scheduler-Token"

// RequireSchedulerToken accepts the shared token in SchedulerTokenHeader or as
// a bearer token. With no token configured every call is refused.
func RequireSchedulerToken(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if expected == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Scheduler endpoints are disabled"})
			return
		}

		got := c.GetHeader(SchedulerTokenHeader)
		if got == "" {
			if scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " "); ok && strings.EqualFold(scheme, "bearer") {
				got = strings.TrimSpace(token)
			}
		}
		if got == "" || !crypto.SafeCompare(got, expected) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid scheduler token"})
			return
		}
		c.Next()
	}
}
