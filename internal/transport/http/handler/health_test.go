package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		checks map[string]HealthCheck
		status int
	}{
		{
			name: "all healthy",
			checks: map[string]HealthCheck{
				"mysql": func(context.Context) error { return nil },
				"redis": func(context.Context) error { return nil },
			},
			status: http.StatusOK,
		},
		{
			name: "one dependency down",
			checks: map[string]HealthCheck{
				"mysql":    func(context.Context) error { return nil },
				"rabbitmq": func(context.Context) error { return errors.New("connection closed") },
			},
			status: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler("issuecompass", "test", time.Now().Add(-time.Minute), tt.checks)
			router := gin.New()
			router.GET("/healthz", h.Check)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			require.Equal(t, tt.status, rec.Code)

			var body struct {
				App          string                      `json:"app"`
				Uptime       int                         `json:"uptime_sec"`
				Dependencies map[string]dependencyStatus `json:"dependencies"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "issuecompass", body.App)
			assert.GreaterOrEqual(t, body.Uptime, 59)
			assert.Len(t, body.Dependencies, len(tt.checks))
			if dep, ok := body.Dependencies["rabbitmq"]; ok {
				assert.False(t, dep.OK)
				assert.Equal(t, "connection closed", dep.Message)
			}
		})
	}
}
