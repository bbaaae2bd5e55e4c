package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"issuecompass/internal/model"
)

type capturedRequest struct {
	Model          string            `json:"model"`
	Messages       []json.RawMessage `json:"messages"`
	ResponseFormat map[string]string `json:"response_format"`
}

func newLLMServer(t *testing.T, status int, content string, captured *capturedRequest) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if captured != nil {
			raw, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			require.NoError(t, json.Unmarshal(raw, captured))
		}
		w.WriteHeader(status)
		if status >= 300 {
			_, _ = w.Write([]byte(content))
			return
		}
		payload, _ := json.Marshal(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": content}}},
		})
		_, _ = w.Write(payload)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestAnalysisClient(baseURL string) *AnalysisClient {
	return NewAnalysisClient(
		NewOpenAICompatibleClient(0, nil),
		ChatConfig{BaseURL: baseURL, APIKey: "test-key", Model: "test-model"},
		"en",
	)
}

const broadContent = "```json\n" + `{
  "suggestions": [{"title": "Deposit refund", "description": "Landlord keeps the deposit"}, {"title": "Notice period", "description": "How long"}],
  "roast": "You signed without reading.",
  "sources": ["Tenancy Act s.12"],
  "promptSuggestion": "Act as a tenancy lawyer",
  "bestModel": "a reasoning model"
}` + "\n```"

func TestRequestBroadAnalysis(t *testing.T) {
	var captured capturedRequest
	srv, calls := newLLMServer(t, http.StatusOK, broadContent, &captured)
	client := newTestAnalysisClient(srv.URL)

	resp, err := client.RequestBroadAnalysis(context.Background(), BroadRequest{
		Query:       "my landlord keeps my deposit",
		Language:    "tr",
		PriorTitles: []string{"Eviction"},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(calls))

	require.Len(t, resp.Suggestions, 2)
	assert.Equal(t, "Deposit refund", resp.Suggestions[0].Title)
	assert.Equal(t, "You signed without reading.", resp.Roast)
	assert.Equal(t, []string{"Tenancy Act s.12"}, resp.Sources)
	assert.Equal(t, "Act as a tenancy lawyer", resp.PromptSuggestion)
	assert.Equal(t, "a reasoning model", resp.BestModel)

	assert.Equal(t, "test-model", captured.Model)
	assert.Equal(t, "json_object", captured.ResponseFormat["type"])
	require.Len(t, captured.Messages, 2)
	assert.Contains(t, string(captured.Messages[0]), `\"tr\"`)
	assert.Contains(t, string(captured.Messages[1]), "Eviction")
	assert.Contains(t, string(captured.Messages[1]), "my landlord keeps my deposit")
}

func TestRequestBroadAnalysisWithImageAttachment(t *testing.T) {
	var captured capturedRequest
	srv, _ := newLLMServer(t, http.StatusOK, broadContent, &captured)
	client := newTestAnalysisClient(srv.URL)

	att := model.NewFileAttachment("crack.png", "image/png", []byte{0x89, 0x50, 0x4e, 0x47})
	_, err := client.RequestBroadAnalysis(context.Background(), BroadRequest{Query: "crack in wall", Attachment: &att})
	require.NoError(t, err)

	require.Len(t, captured.Messages, 2)
	assert.Contains(t, string(captured.Messages[1]), `"image_url"`)
	assert.Contains(t, string(captured.Messages[1]), "data:image/png;base64,")
}

func TestRequestBroadAnalysisWithLinkAttachment(t *testing.T) {
	var captured capturedRequest
	srv, _ := newLLMServer(t, http.StatusOK, broadContent, &captured)
	client := newTestAnalysisClient(srv.URL)

	att := model.NewLinkAttachment("https://example.com/contract")
	_, err := client.RequestBroadAnalysis(context.Background(), BroadRequest{Query: "contract", Attachment: &att})
	require.NoError(t, err)
	assert.Contains(t, string(captured.Messages[1]), "https://example.com/contract")
}

func TestRequestItemDetail(t *testing.T) {
	content := `{"analysis": "You are owed the deposit.", "steps": ["Write a letter", " ", "File a claim"], "risks": "Losing the money"}`
	srv, _ := newLLMServer(t, http.StatusOK, content, nil)
	client := newTestAnalysisClient(srv.URL)

	resp, err := client.RequestItemDetail(context.Background(), DetailRequest{ItemTitle: "Deposit refund", ParentQuery: "deposit"})
	require.NoError(t, err)
	assert.Equal(t, "You are owed the deposit.", resp.Analysis)
	assert.Equal(t, []string{"Write a letter", "File a claim"}, resp.Steps)
	assert.True(t, resp.ToDetails().Complete())
}

func TestRequestItemDetailMalformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "I cannot help with that"},
		{"missing risks", `{"analysis": "a", "steps": ["s"]}`},
		{"empty steps", `{"analysis": "a", "steps": [], "risks": "r"}`},
		{"wrong type", `{"analysis": "a", "steps": "s", "risks": "r"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newLLMServer(t, http.StatusOK, tt.content, nil)
			client := newTestAnalysisClient(srv.URL)

			_, err := client.RequestItemDetail(context.Background(), DetailRequest{ItemTitle: "x", ParentQuery: "y"})
			require.Error(t, err)
			assert.True(t, IsMalformed(err))
			assert.False(t, IsRateLimited(err))
		})
	}
}

func TestRequestBroadAnalysisMalformed(t *testing.T) {
	srv, _ := newLLMServer(t, http.StatusOK, `{"suggestions": [{"title": ""}], "roast": "r", "sources": []}`, nil)
	client := newTestAnalysisClient(srv.URL)

	_, err := client.RequestBroadAnalysis(context.Background(), BroadRequest{Query: "q"})
	var malformed *MalformedResponseError
	require.ErrorAs(t, err, &malformed)
	assert.Contains(t, malformed.Raw, "suggestions")
}

func TestRemoteErrorClassification(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantStatus  int
		rateLimited bool
	}{
		{"429", http.StatusTooManyRequests, `{"error": {"message": "slow down"}}`, 429, true},
		{"quota in 403 body", http.StatusForbidden, `{"error": {"message": "You exceeded your current quota", "status": "RESOURCE_EXHAUSTED"}}`, 429, true},
		{"server error", http.StatusInternalServerError, "boom", 500, false},
		{"bad request", http.StatusBadRequest, `{"error": {"message": "bad model"}}`, 400, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, calls := newLLMServer(t, tt.status, tt.body, nil)
			client := newTestAnalysisClient(srv.URL)

			_, err := client.RequestItemDetail(context.Background(), DetailRequest{ItemTitle: "x", ParentQuery: "y"})
			var remoteErr *RemoteServiceError
			require.ErrorAs(t, err, &remoteErr)
			assert.Equal(t, tt.wantStatus, remoteErr.Status)
			assert.Equal(t, tt.rateLimited, IsRateLimited(err))
			assert.EqualValues(t, 1, atomic.LoadInt32(calls), "client must not retry")
		})
	}
}

func TestTransportErrorHasZeroStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	baseURL := srv.URL
	srv.Close()

	client := newTestAnalysisClient(baseURL)
	_, err := client.RequestItemDetail(context.Background(), DetailRequest{ItemTitle: "x", ParentQuery: "y"})

	var remoteErr *RemoteServiceError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, 0, remoteErr.Status)
	assert.False(t, IsRateLimited(err))
}

func TestMissingCredentialFailsBeforeNetwork(t *testing.T) {
	srv, calls := newLLMServer(t, http.StatusOK, broadContent, nil)
	client := NewAnalysisClient(NewOpenAICompatibleClient(0, nil), ChatConfig{BaseURL: srv.URL, Model: "m"}, "en")

	_, err := client.RequestBroadAnalysis(context.Background(), BroadRequest{Query: "q"})
	assert.True(t, errors.Is(err, ErrConfiguration))
	_, err = client.RequestItemDetail(context.Background(), DetailRequest{ItemTitle: "x"})
	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.EqualValues(t, 0, atomic.LoadInt32(calls))
}

func TestDecodeJSONObject(t *testing.T) {
	var v map[string]string
	require.NoError(t, decodeJSONObject("Sure! {\"a\": \"b\"} hope this helps", &v))
	assert.Equal(t, "b", v["a"])
	assert.Error(t, decodeJSONObject("no object", &v))
	assert.True(t, strings.HasPrefix(dataURL("text/plain", []byte("hi")), "data:text/plain;base64,"))
}
