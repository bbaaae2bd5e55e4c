package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"issuecompass/internal/ai"
	"issuecompass/internal/enrich"
)

type stubClient struct {
	detailErr error
}

func (s stubClient) RequestBroadAnalysis(context.Context, ai.BroadRequest) (*ai.BroadResponse, error) {
	return &ai.BroadResponse{}, nil
}

func (s stubClient) RequestItemDetail(context.Context, ai.DetailRequest) (*ai.DetailResponse, error) {
	if s.detailErr != nil {
		return nil, s.detailErr
	}
	return &ai.DetailResponse{}, nil
}

func TestInstrumentedClientOutcomes(t *testing.T) {
	m := New()
	ctx := context.Background()

	_, err := NewInstrumentedClient(stubClient{}, m).RequestBroadAnalysis(ctx, ai.BroadRequest{Query: "q"})
	require.NoError(t, err)
	_, err = NewInstrumentedClient(stubClient{detailErr: &ai.RemoteServiceError{Status: http.StatusTooManyRequests}}, m).
		RequestItemDetail(ctx, ai.DetailRequest{ItemTitle: "t"})
	require.Error(t, err)
	_, err = NewInstrumentedClient(stubClient{detailErr: &ai.RemoteServiceError{Status: http.StatusBadGateway}}, m).
		RequestItemDetail(ctx, ai.DetailRequest{ItemTitle: "t"})
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMRequestsTotal.WithLabelValues("broad", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMRequestsTotal.WithLabelValues("detail", "rate_limited")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMRequestsTotal.WithLabelValues("detail", "error")))
}

func TestEnrichmentDrained(t *testing.T) {
	m := New()
	m.EnrichmentDrained(enrich.RunResult{
		Total:     4,
		Requests:  6,
		Succeeded: []string{"a", "b"},
		Abandoned: []string{"c"},
		Skipped:   []string{"d"},
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.EnrichmentRunsTotal))
	assert.Equal(t, 6.0, testutil.ToFloat64(m.EnrichmentRequestsTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EnrichmentItemsTotal.WithLabelValues("detailed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EnrichmentItemsTotal.WithLabelValues("abandoned")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EnrichmentItemsTotal.WithLabelValues("skipped")))
}

func TestGinMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()
	router := gin.New()
	router.Use(m.GinMiddleware())
	router.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	router.GET("/metrics", gin.WrapH(m.Handler()))

	for _, id := range []string{"1", "2"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/"+id, nil))
		require.Equal(t, http.StatusNoContent, rec.Code)
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/items/:id", "204")))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `issuecompass_http_requests_total{method="GET",route="/items/:id",status="204"} 2`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
