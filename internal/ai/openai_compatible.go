package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ChatMessage content is either a plain string or a []ContentPart.
type ChatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
	File     *FileData `json:"file,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

type FileData struct {
	Filename string `json:"filename"`
	FileData string `json:"file_data"`
}

func TextPart(text string) ContentPart {
	return ContentPart{Type: "text", Text: text}
}

type ChatConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

func (c ChatConfig) Valid() bool {
	return strings.TrimSpace(c.BaseURL) != "" && strings.TrimSpace(c.APIKey) != "" && strings.TrimSpace(c.Model) != ""
}

type CompletionOptions struct {
	JSON        bool
	Temperature float64
}

type OpenAICompatibleClient struct {
	httpClient *http.Client
	limiter    *RateLimiter
}

// NewOpenAICompatibleClient never retries; limiter may be nil.
func NewOpenAICompatibleClient(timeout time.Duration, limiter *RateLimiter) *OpenAICompatibleClient {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &OpenAICompatibleClient{
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
	}
}

func (c *OpenAICompatibleClient) Complete(ctx context.Context, cfg ChatConfig, messages []ChatMessage, opts CompletionOptions) (string, error) {
	if !cfg.Valid() {
		return "", ErrConfiguration
	}

	reqBody := map[string]interface{}{
		"model":    cfg.Model,
		"messages": messages,
		"stream":   false,
	}
	if opts.JSON {
		reqBody["response_format"] = map[string]string{"type": "json_object"}
	}
	if opts.Temperature > 0 {
		reqBody["temperature"] = opts.Temperature
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal llm request failed: %w", err)
	}

	url := strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("build llm request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	if err := c.limiter.Wait(ctx); err != nil {
		return "", newTransportError(err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", newTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", newTransportError(fmt.Errorf("read llm response failed: %w", err))
	}
	if resp.StatusCode >= 300 {
		return "", newStatusError(resp.StatusCode, raw)
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &MalformedResponseError{Raw: string(raw), Err: fmt.Errorf("parse llm json failed: %w", err)}
	}
	if len(parsed.Choices) == 0 {
		return "", &MalformedResponseError{Raw: string(raw), Err: fmt.Errorf("empty llm choices")}
	}
	return parsed.Choices[0].Message.Content, nil
}
