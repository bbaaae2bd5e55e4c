package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"issuecompass/internal/ai"
	"issuecompass/internal/app"
	"issuecompass/internal/export"
	"issuecompass/internal/model"
	"issuecompass/internal/transport/http/middleware"
	"issuecompass/internal/transport/http/response"
)

const defaultLinesPerPage = 50

// UserLookup resolves the account behind a request, for its preferred
// language.
type UserLookup interface {
	GetUserByID(id uint) (*model.User, error)
}

type WorkspaceHandler struct {
	manager            *app.WorkspaceManager
	users              UserLookup
	maxAttachmentBytes int
}

type AttachLinkRequest struct {
	URL string `json:"url" binding:"required,max=2048"`
}

type SubmitQueryRequest struct {
	Query    string `json:"query" binding:"required,max=8000"`
	Language string `json:"language" binding:"max=16"`
}

type workspaceView struct {
	Current    *model.ResultDocument `json:"current"`
	Attachment *model.Attachment     `json:"attachment,omitempty"`
	Enriching  bool                  `json:"enriching"`
}

func NewWorkspaceHandler(manager *app.WorkspaceManager, users UserLookup, maxAttachmentBytes int) *WorkspaceHandler {
	if maxAttachmentBytes <= 0 {
		maxAttachmentBytes = model.MaxAttachmentBytes
	}
	return &WorkspaceHandler{manager: manager, users: users, maxAttachmentBytes: maxAttachmentBytes}
}

func (h *WorkspaceHandler) StageAttachment(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}

	var att model.Attachment
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		parsed, err := h.readUpload(c)
		if err != nil {
			writeWorkspaceError(c, err)
			return
		}
		att = parsed
	} else {
		var req AttachLinkRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "expected multipart file or {\"url\"}")
			return
		}
		att = model.NewLinkAttachment(req.URL)
	}

	if err := ws.StageAttachment(att); err != nil {
		writeWorkspaceError(c, err)
		return
	}
	response.OK(c, att)
}

func (h *WorkspaceHandler) ClearAttachment(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	ws.ClearAttachment()
	response.OK(c, nil)
}

func (h *WorkspaceHandler) SubmitQuery(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}

	var req SubmitQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	language := strings.TrimSpace(req.Language)
	if language == "" {
		language = h.preferredLanguage(c)
	}

	doc, err := ws.SubmitQuery(c.Request.Context(), req.Query, language)
	if err != nil {
		writeWorkspaceError(c, err)
		return
	}
	response.OK(c, doc)
}

func (h *WorkspaceHandler) LoadMore(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	doc, err := ws.LoadMore(c.Request.Context())
	if err != nil {
		writeWorkspaceError(c, err)
		return
	}
	response.OK(c, doc)
}

func (h *WorkspaceHandler) RequestItemDetail(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	doc, err := ws.RequestItemDetail(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeWorkspaceError(c, err)
		return
	}
	response.OK(c, doc)
}

func (h *WorkspaceHandler) RestoreFromHistory(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	doc, err := ws.RestoreFromHistory(c.Param("id"))
	if err != nil {
		writeWorkspaceError(c, err)
		return
	}
	response.OK(c, doc)
}

func (h *WorkspaceHandler) Current(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	view := workspaceView{Enriching: ws.Enriching()}
	if doc, ok := ws.Current(); ok {
		view.Current = &doc
	}
	if att, ok := ws.Attachment(); ok {
		view.Attachment = &att
	}
	response.OK(c, view)
}

func (h *WorkspaceHandler) History(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	response.OK(c, ws.History())
}

func (h *WorkspaceHandler) Logs(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	response.OK(c, ws.Logs())
}

func (h *WorkspaceHandler) Report(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}

	linesPerPage := defaultLinesPerPage
	if raw := c.Query("lines_per_page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid lines_per_page")
			return
		}
		linesPerPage = parsed
	}

	doc, ok := ws.Current()
	if !ok {
		writeWorkspaceError(c, app.ErrNoCurrentDocument)
		return
	}
	pages, err := export.Report(doc, linesPerPage)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		return
	}
	response.OK(c, gin.H{"document_id": doc.ID, "version": doc.Version, "pages": pages})
}

// Events streams enrichment progress and new document versions as SSE until
// the client goes away.
func (h *WorkspaceHandler) Events(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "stream not supported")
		return
	}

	progress, stopProgress := ws.Progress(16)
	defer stopProgress()
	docs, stopDocs := ws.Watch()
	defer stopDocs()

	send := func(event string, v any) bool {
		payload, err := json.Marshal(v)
		if err != nil {
			return false
		}
		if _, err := fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, payload); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !send("progress", ws.LastProgress()) {
		return
	}
	if doc, ok := ws.Current(); ok && !send("document", doc) {
		return
	}

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-progress:
			if !ok || !send("progress", p) {
				return
			}
		case doc, ok := <-docs:
			if !ok || !send("document", doc) {
				return
			}
		}
	}
}

func (h *WorkspaceHandler) workspace(c *gin.Context) (*app.Workspace, bool) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return nil, false
	}
	ws, err := h.manager.Get(c.Request.Context(), userID)
	if err != nil {
		writeWorkspaceError(c, err)
		return nil, false
	}
	return ws, true
}

// preferredLanguage falls back to "" (the workspace default) when the
// account cannot be read.
func (h *WorkspaceHandler) preferredLanguage(c *gin.Context) string {
	userID, ok := getUserIDFromContext(c)
	if !ok || h.users == nil {
		return ""
	}
	user, err := h.users.GetUserByID(userID)
	if err != nil {
		return ""
	}
	return user.Language
}

func (h *WorkspaceHandler) readUpload(c *gin.Context) (model.Attachment, error) {
	header, err := c.FormFile("file")
	if err != nil {
		return model.Attachment{}, fmt.Errorf("%w: missing file field", model.ErrAttachmentInvalid)
	}
	if header.Size > int64(h.maxAttachmentBytes) {
		return model.Attachment{}, fmt.Errorf("%w: %d bytes (max %d)", model.ErrPayloadTooLarge, header.Size, h.maxAttachmentBytes)
	}

	f, err := header.Open()
	if err != nil {
		return model.Attachment{}, fmt.Errorf("open upload failed: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, int64(h.maxAttachmentBytes)+1))
	if err != nil {
		return model.Attachment{}, fmt.Errorf("read upload failed: %w", err)
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	return model.NewFileAttachment(header.Filename, mimeType, data), nil
}

func writeWorkspaceError(c *gin.Context, err error) {
	var remoteErr *ai.RemoteServiceError
	switch {
	case errors.Is(err, app.ErrQueryEmpty):
		response.Error(c, http.StatusBadRequest, response.CodeQueryEmpty, err.Error())
	case errors.Is(err, model.ErrPayloadTooLarge):
		response.Error(c, http.StatusBadRequest, response.CodePayloadTooLarge, err.Error())
	case errors.Is(err, model.ErrAttachmentInvalid), errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, ai.ErrConfiguration):
		response.Error(c, http.StatusBadRequest, response.CodeLLMConfig, err.Error())
	case errors.Is(err, app.ErrNoCurrentDocument):
		response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, err.Error())
	case errors.Is(err, app.ErrItemNotFound):
		response.Error(c, http.StatusNotFound, response.CodeItemNotFound, err.Error())
	case errors.Is(err, app.ErrHistoryNotFound):
		response.Error(c, http.StatusNotFound, response.CodeHistoryNotFound, err.Error())
	case errors.Is(err, app.ErrDetailInFlight):
		response.Error(c, http.StatusConflict, response.CodeDetailInFlight, err.Error())
	case errors.Is(err, app.ErrDocumentSuperseded):
		response.Error(c, http.StatusConflict, response.CodeConflict, err.Error())
	case errors.Is(err, app.ErrWorkspaceClosed):
		response.Error(c, http.StatusServiceUnavailable, response.CodeUnavailable, err.Error())
	case ai.IsRateLimited(err):
		response.Error(c, http.StatusTooManyRequests, response.CodeRateLimited, err.Error())
	case ai.IsMalformed(err):
		response.Error(c, http.StatusBadGateway, response.CodeMalformedResponse, err.Error())
	case errors.As(err, &remoteErr):
		response.Error(c, http.StatusBadGateway, response.CodeRemoteService, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "workspace request failed")
	}
}

func getUserIDFromContext(c *gin.Context) (uint, bool) {
	userIDAny, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}
	userID, ok := userIDAny.(uint)
	return userID, ok && userID != 0
}
