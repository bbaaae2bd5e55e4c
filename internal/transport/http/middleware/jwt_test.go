package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"issuecompass/internal/pkg/jwtutil"
)

func TestAuthJWT(t *testing.T) {
	gin.SetMode(gin.TestMode)
	token, err := jwtutil.GenerateToken("secret", time.Hour, 7, "ada")
	require.NoError(t, err)
	foreign, err := jwtutil.GenerateToken("other-secret", time.Hour, 7, "ada")
	require.NoError(t, err)

	router := gin.New()
	router.GET("/me", AuthJWT("secret"), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.GetUint(ContextUserIDKey), "name": c.GetString(ContextUsernameKey)})
	})

	tests := []struct {
		name   string
		target string
		header string
		status int
		body   string
	}{
		{"bearer header", "/me", "Bearer " + token, http.StatusOK, `"id":7`},
		{"query token", "/me?access_token=" + token, "", http.StatusOK, `"name":"ada"`},
		{"missing", "/me", "", http.StatusUnauthorized, "missing authorization header"},
		{"wrong scheme", "/me", "Basic abc", http.StatusUnauthorized, "invalid authorization scheme"},
		{"empty bearer", "/me", "Bearer ", http.StatusUnauthorized, "invalid authorization scheme"},
		{"foreign signature", "/me", "Bearer " + foreign, http.StatusUnauthorized, "invalid or expired token"},
		{"header wins over query", "/me?access_token=" + token, "Bearer garbage", http.StatusUnauthorized, "invalid or expired token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.body)
		})
	}
}
