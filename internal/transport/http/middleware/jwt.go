package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"issuecompass/internal/pkg/jwtutil"
	"issuecompass/internal/transport/http/response"
)

const (
	ContextUserIDKey   = "user_id"
	ContextUsernameKey = "username"

	// tokenQueryParam carries the token for clients that cannot set headers,
	// such as EventSource on /workspace/events.
	tokenQueryParam = "access_token"
	bearerPrefix    = "Bearer "
)

func AuthJWT(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, reason := bearerToken(c)
		if token == "" {
			unauthorized(c, reason)
			return
		}

		claims, err := jwtutil.ParseToken(secret, token)
		if err != nil {
			unauthorized(c, "invalid or expired token")
			return
		}

		c.Set(ContextUserIDKey, claims.UserID)
		c.Set(ContextUsernameKey, claims.Username)
		c.Next()
	}
}

// bearerToken prefers the Authorization header and falls back to the query
// parameter only when no header is sent.
func bearerToken(c *gin.Context) (string, string) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" {
		if token := strings.TrimSpace(c.Query(tokenQueryParam)); token != "" {
			return token, ""
		}
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", "invalid authorization scheme"
	}
	return strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix)), "invalid or expired token"
}

func unauthorized(c *gin.Context, message string) {
	response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, message)
	c.Abort()
}
