package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"issuecompass/internal/model"
	"issuecompass/internal/pkg/pdfextract"
)

const maxAttachmentTextRunes = 20000

type BroadRequest struct {
	Query       string
	Language    string
	Attachment  *model.Attachment
	PriorTitles []string
}

type Suggestion struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type BroadResponse struct {
	Suggestions      []Suggestion `json:"suggestions"`
	Roast            string       `json:"roast"`
	Sources          []string     `json:"sources"`
	PromptSuggestion string       `json:"promptSuggestion"`
	BestModel        string       `json:"bestModel"`
}

type DetailRequest struct {
	ItemTitle   string
	ParentQuery string
	Language    string
}

type DetailResponse struct {
	Analysis string   `json:"analysis"`
	Steps    []string `json:"steps"`
	Risks    string   `json:"risks"`
}

func (r *DetailResponse) ToDetails() *model.ItemDetails {
	steps := make([]string, len(r.Steps))
	copy(steps, r.Steps)
	return &model.ItemDetails{Analysis: r.Analysis, Steps: steps, Risks: r.Risks}
}

// AnalysisClient issues broad and detail requests. It performs exactly one
// remote call per method invocation.
type AnalysisClient struct {
	llm             *OpenAICompatibleClient
	cfg             ChatConfig
	defaultLanguage string
}

func NewAnalysisClient(llm *OpenAICompatibleClient, cfg ChatConfig, defaultLanguage string) *AnalysisClient {
	if defaultLanguage == "" {
		defaultLanguage = "en"
	}
	return &AnalysisClient{llm: llm, cfg: cfg, defaultLanguage: defaultLanguage}
}

func (c *AnalysisClient) RequestBroadAnalysis(ctx context.Context, req BroadRequest) (*BroadResponse, error) {
	if !c.cfg.Valid() {
		return nil, ErrConfiguration
	}

	parts := []ContentPart{TextPart(broadUserPrompt(req.Query, req.PriorTitles))}
	if req.Attachment != nil {
		parts = append(parts, attachmentParts(*req.Attachment)...)
	}
	messages := []ChatMessage{
		{Role: "system", Content: broadSystemPrompt(c.language(req.Language))},
		{Role: "user", Content: parts},
	}

	content, err := c.llm.Complete(ctx, c.cfg, messages, CompletionOptions{JSON: true})
	if err != nil {
		return nil, err
	}
	return parseBroadResponse(content)
}

func (c *AnalysisClient) RequestItemDetail(ctx context.Context, req DetailRequest) (*DetailResponse, error) {
	if !c.cfg.Valid() {
		return nil, ErrConfiguration
	}

	messages := []ChatMessage{
		{Role: "system", Content: detailSystemPrompt(c.language(req.Language))},
		{Role: "user", Content: detailUserPrompt(req.ItemTitle, req.ParentQuery)},
	}

	content, err := c.llm.Complete(ctx, c.cfg, messages, CompletionOptions{JSON: true})
	if err != nil {
		return nil, err
	}
	return parseDetailResponse(content)
}

func (c *AnalysisClient) language(requested string) string {
	if strings.TrimSpace(requested) != "" {
		return strings.TrimSpace(requested)
	}
	return c.defaultLanguage
}

func attachmentParts(att model.Attachment) []ContentPart {
	if att.Kind == model.AttachmentLink {
		return []ContentPart{TextPart("Reference link provided by the user: " + att.URL)}
	}

	mimeType := strings.ToLower(att.MimeType)
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return []ContentPart{{
			Type:     "image_url",
			ImageURL: &ImageURL{URL: dataURL(att.MimeType, att.Data)},
		}}
	case strings.HasPrefix(mimeType, "text/"), mimeType == "application/json":
		return []ContentPart{TextPart(attachedText(att.Name, string(att.Data)))}
	case mimeType == "application/pdf":
		text, err := pdfextract.ExtractText(bytes.NewReader(att.Data), maxAttachmentTextRunes)
		if err == nil && strings.TrimSpace(text) != "" {
			return []ContentPart{TextPart(attachedText(att.Name, text))}
		}
	}
	return []ContentPart{{
		Type: "file",
		File: &FileData{Filename: att.Name, FileData: dataURL(att.MimeType, att.Data)},
	}}
}

func attachedText(name, text string) string {
	runes := []rune(text)
	if len(runes) > maxAttachmentTextRunes {
		text = string(runes[:maxAttachmentTextRunes])
	}
	return fmt.Sprintf("Attached document %q:\n%s", name, text)
}

func dataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

type broadWire struct {
	Suggestions *[]struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	} `json:"suggestions"`
	Roast            *string   `json:"roast"`
	Sources          *[]string `json:"sources"`
	PromptSuggestion string    `json:"promptSuggestion"`
	BestModel        string    `json:"bestModel"`
}

type detailWire struct {
	Analysis *string   `json:"analysis"`
	Steps    *[]string `json:"steps"`
	Risks    *string   `json:"risks"`
}

func parseBroadResponse(content string) (*BroadResponse, error) {
	var wire broadWire
	if err := decodeJSONObject(content, &wire); err != nil {
		return nil, &MalformedResponseError{Raw: content, Err: err}
	}
	if wire.Suggestions == nil || wire.Roast == nil || wire.Sources == nil {
		return nil, &MalformedResponseError{Raw: content, Err: errors.New("missing suggestions, roast or sources")}
	}

	resp := &BroadResponse{
		Suggestions:      make([]Suggestion, 0, len(*wire.Suggestions)),
		Roast:            *wire.Roast,
		Sources:          *wire.Sources,
		PromptSuggestion: wire.PromptSuggestion,
		BestModel:        wire.BestModel,
	}
	for i, s := range *wire.Suggestions {
		title := strings.TrimSpace(s.Title)
		if title == "" {
			return nil, &MalformedResponseError{Raw: content, Err: fmt.Errorf("suggestion %d has no title", i)}
		}
		resp.Suggestions = append(resp.Suggestions, Suggestion{Title: title, Description: strings.TrimSpace(s.Description)})
	}
	return resp, nil
}

func parseDetailResponse(content string) (*DetailResponse, error) {
	var wire detailWire
	if err := decodeJSONObject(content, &wire); err != nil {
		return nil, &MalformedResponseError{Raw: content, Err: err}
	}
	if wire.Analysis == nil || wire.Steps == nil || wire.Risks == nil {
		return nil, &MalformedResponseError{Raw: content, Err: errors.New("missing analysis, steps or risks")}
	}

	resp := &DetailResponse{Analysis: strings.TrimSpace(*wire.Analysis), Risks: strings.TrimSpace(*wire.Risks)}
	for _, step := range *wire.Steps {
		if s := strings.TrimSpace(step); s != "" {
			resp.Steps = append(resp.Steps, s)
		}
	}
	if !resp.ToDetails().Complete() {
		return nil, &MalformedResponseError{Raw: content, Err: errors.New("detail response has empty fields")}
	}
	return resp, nil
}

// decodeJSONObject tolerates markdown fences and chatter around the object.
func decodeJSONObject(content string, v any) error {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end < start {
		return errors.New("no json object in response")
	}
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), v); err != nil {
		return fmt.Errorf("decode json object failed: %w", err)
	}
	return nil
}
