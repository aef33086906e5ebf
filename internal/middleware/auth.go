package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/velahub/signalcore/internal/auth"
)

// ClaimsContextKey is the Gin context key the RequireAuth middleware stores
// validated claims under. The ratelimit package keys its per-user buckets
// off this same context entry, so the two must agree.
const ClaimsContextKey = "claims"

// RequireAuth validates the Authorization: Bearer <token> header against
// verifier and aborts with 401 on any failure, mirroring the auth-failure
// branch of the WebSocket upgrade path in internal/transport.
func RequireAuth(verifier auth.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := verifier.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(ClaimsContextKey, claims)
		c.Next()
	}
}

// ClaimsFromContext retrieves the claims RequireAuth stored, if any.
func ClaimsFromContext(c *gin.Context) (*auth.CustomClaims, bool) {
	v, ok := c.Get(ClaimsContextKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.CustomClaims)
	return claims, ok
}
