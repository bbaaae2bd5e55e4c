package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"issuecompass/internal/activity"
	"issuecompass/internal/ai"
	"issuecompass/internal/enrich"
	"issuecompass/internal/history"
	"issuecompass/internal/model"
	"issuecompass/internal/result"
)

var (
	ErrQueryEmpty         = errors.New("query is empty")
	ErrNoCurrentDocument  = errors.New("no current document")
	ErrItemNotFound       = errors.New("item not found")
	ErrDetailInFlight     = errors.New("details for this item are already being fetched")
	ErrDocumentSuperseded = errors.New("document was replaced while the request ran")
	ErrHistoryNotFound    = history.ErrNotFound
	ErrWorkspaceClosed    = errors.New("workspace is closed")
)

type AnalysisClient interface {
	RequestBroadAnalysis(ctx context.Context, req ai.BroadRequest) (*ai.BroadResponse, error)
	RequestItemDetail(ctx context.Context, req ai.DetailRequest) (*ai.DetailResponse, error)
}

// DrainObserver is told about every finished enrichment run.
type DrainObserver interface {
	EnrichmentDrained(res enrich.RunResult)
}

type WorkspaceConfig struct {
	Language           string
	MaxAttachmentBytes int
	Enrichment         enrich.Config
	Clock              enrich.Clock
	Logger             *slog.Logger
	HistorySink        history.Sink
	ActivitySink       activity.Sink
	DrainObserver      DrainObserver
}

// Workspace is one account's analysis session: the current document, its
// history, the activity log, a staged attachment and one enrichment
// scheduler.
type Workspace struct {
	ctx    context.Context
	cancel context.CancelFunc

	client    AnalysisClient
	cfg       WorkspaceConfig
	clock     enrich.Clock
	holder    *result.Holder
	history   *history.Log
	activity  *activity.Log
	inflight  *enrich.InFlight
	scheduler *enrich.Scheduler

	mu         sync.Mutex
	attachment *model.Attachment
	abandoned  map[string]struct{}
}

func NewWorkspace(client AnalysisClient, cfg WorkspaceConfig) *Workspace {
	if cfg.Clock == nil {
		cfg.Clock = enrich.RealClock()
	}
	if cfg.MaxAttachmentBytes <= 0 {
		cfg.MaxAttachmentBytes = model.MaxAttachmentBytes
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Workspace{
		ctx:       ctx,
		cancel:    cancel,
		client:    client,
		cfg:       cfg,
		clock:     cfg.Clock,
		holder:    result.NewHolder(),
		history:   history.NewLog(cfg.HistorySink),
		activity:  activity.NewLog(cfg.Logger, cfg.ActivitySink),
		inflight:  enrich.NewInFlight(),
		abandoned: make(map[string]struct{}),
	}
	w.scheduler = enrich.New(client, w, w.activity,
		enrich.WithClock(cfg.Clock),
		enrich.WithConfig(cfg.Enrichment),
		enrich.WithInFlight(w.inflight),
		enrich.WithOnDrained(w.onDrained),
	)
	return w
}

// Hydrate seeds the history with persisted documents.
func (w *Workspace) Hydrate(docs []model.ResultDocument) {
	w.history.Load(docs)
}

// HydrateLogs seeds the activity log with persisted entries.
func (w *Workspace) HydrateLogs(entries []model.LogEntry) {
	w.activity.Load(entries)
}

func (w *Workspace) StageAttachment(att model.Attachment) error {
	if err := att.Validate(w.cfg.MaxAttachmentBytes); err != nil {
		w.activity.Warning("attachment rejected", err.Error())
		return err
	}
	w.mu.Lock()
	w.attachment = &att
	w.mu.Unlock()

	label := att.Name
	if att.Kind == model.AttachmentLink {
		label = att.URL
	}
	w.activity.Info("attachment staged", label)
	return nil
}

func (w *Workspace) ClearAttachment() {
	w.mu.Lock()
	had := w.attachment != nil
	w.attachment = nil
	w.mu.Unlock()
	if had {
		w.activity.Info("attachment removed", "")
	}
}

func (w *Workspace) Attachment() (model.Attachment, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.attachment == nil {
		return model.Attachment{}, false
	}
	return *w.attachment, true
}

// SubmitQuery runs a broad analysis and makes its result the current
// document.
func (w *Workspace) SubmitQuery(ctx context.Context, query, language string) (model.ResultDocument, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return model.ResultDocument{}, ErrQueryEmpty
	}
	if w.ctx.Err() != nil {
		return model.ResultDocument{}, ErrWorkspaceClosed
	}
	language = w.languageOr(language)

	req := ai.BroadRequest{Query: query, Language: language}
	if att, ok := w.Attachment(); ok {
		req.Attachment = &att
	}
	resp, err := w.client.RequestBroadAnalysis(ctx, req)
	if err != nil {
		w.activity.Error("analysis failed", err.Error())
		return model.ResultDocument{}, err
	}

	doc := result.Create(query, resp, w.clock.Now())
	doc.Language = language
	w.holder.Publish(doc)
	w.history.Upsert(doc)
	w.activity.Info(fmt.Sprintf("analysis ready with %d items", len(doc.Items)), query)

	w.scheduleEnrichment()
	return doc, nil
}

// LoadMore asks for another page of items for the current document.
func (w *Workspace) LoadMore(ctx context.Context) (model.ResultDocument, error) {
	base, ok := w.holder.Current()
	if !ok {
		return model.ResultDocument{}, ErrNoCurrentDocument
	}
	if w.ctx.Err() != nil {
		return model.ResultDocument{}, ErrWorkspaceClosed
	}

	req := ai.BroadRequest{Query: base.Query, Language: w.languageOr(base.Language), PriorTitles: base.Titles()}
	if att, ok := w.Attachment(); ok {
		req.Attachment = &att
	}
	resp, err := w.client.RequestBroadAnalysis(ctx, req)
	if err != nil {
		w.activity.Error("loading more items failed", err.Error())
		return model.ResultDocument{}, err
	}

	next, changed := w.holder.Update(func(doc model.ResultDocument) (model.ResultDocument, bool) {
		if doc.ID != base.ID {
			return doc, false
		}
		return result.AppendPage(doc, resp), true
	})
	if !changed {
		return next, ErrDocumentSuperseded
	}
	w.history.Upsert(next)
	w.activity.Info(fmt.Sprintf("loaded %d more items", len(resp.Suggestions)), base.Query)

	w.scheduleEnrichment()
	return next, nil
}

// RequestItemDetail fetches details for one item of the current document
// with a single attempt.
func (w *Workspace) RequestItemDetail(ctx context.Context, itemID string) (model.ResultDocument, error) {
	doc, ok := w.holder.Current()
	if !ok {
		return model.ResultDocument{}, ErrNoCurrentDocument
	}
	item, ok := doc.Item(itemID)
	if !ok {
		return doc, ErrItemNotFound
	}
	if item.HasDetails() {
		return doc, nil
	}
	if !w.inflight.Acquire(itemID) {
		return doc, ErrDetailInFlight
	}
	defer w.inflight.Release(itemID)

	resp, err := w.client.RequestItemDetail(ctx, ai.DetailRequest{
		ItemTitle:   item.Title,
		ParentQuery: doc.Query,
		Language:    w.languageOr(doc.Language),
	})
	if err == nil && resp == nil {
		err = &ai.MalformedResponseError{Err: errors.New("empty detail response")}
	}
	if err != nil {
		w.activity.Error(fmt.Sprintf("details for %q failed", item.Title), err.Error())
		return doc, err
	}

	w.ApplyDetail(doc.ID, itemID, resp.ToDetails())
	w.mu.Lock()
	delete(w.abandoned, itemID)
	w.mu.Unlock()
	w.activity.Info(fmt.Sprintf("details ready for %q", item.Title), "")

	current, _ := w.holder.Current()
	return current, nil
}

// RestoreFromHistory makes a stored version current again and drops the
// staged attachment.
func (w *Workspace) RestoreFromHistory(id string) (model.ResultDocument, error) {
	doc, err := w.history.Restore(id)
	if err != nil {
		return model.ResultDocument{}, err
	}
	w.holder.Publish(doc)
	w.mu.Lock()
	w.attachment = nil
	w.mu.Unlock()
	w.activity.Info("restored from history", doc.Query)

	w.scheduleEnrichment()
	return doc, nil
}

func (w *Workspace) Current() (model.ResultDocument, bool) {
	return w.holder.Current()
}

// Watch delivers every new version of the current document, latest only.
func (w *Workspace) Watch() (<-chan model.ResultDocument, func()) {
	return w.holder.Subscribe()
}

func (w *Workspace) History() []model.ResultDocument {
	return w.history.List()
}

func (w *Workspace) Logs() []model.LogEntry {
	return w.activity.Entries()
}

func (w *Workspace) Progress(buffer int) (<-chan enrich.Progress, func()) {
	return w.scheduler.Subscribe(buffer)
}

func (w *Workspace) LastProgress() enrich.Progress {
	return w.scheduler.LastProgress()
}

func (w *Workspace) Enriching() bool {
	return w.scheduler.Busy()
}

// WaitIdle blocks until no enrichment run is active.
func (w *Workspace) WaitIdle() {
	w.scheduler.Wait()
}

// Close stops the active run, if any, and waits for it to return.
func (w *Workspace) Close() {
	w.cancel()
	w.scheduler.Wait()
}

// NeedsDetail implements enrich.Patcher. Items of a document that is no
// longer current are not fetched.
func (w *Workspace) NeedsDetail(docID, itemID string) bool {
	doc, ok := w.holder.Current()
	if !ok || doc.ID != docID {
		return false
	}
	item, ok := doc.Item(itemID)
	return ok && !item.HasDetails()
}

// ApplyDetail implements enrich.Patcher. The current document is patched
// when its identity matches, and the history entry of docID always is.
func (w *Workspace) ApplyDetail(docID, itemID string, details *model.ItemDetails) bool {
	patch := func(doc model.ResultDocument) (model.ResultDocument, bool) {
		if doc.ID != docID {
			return doc, false
		}
		return result.AttachDetail(doc, itemID, details)
	}
	if next, changed := w.holder.Update(patch); changed {
		w.history.Upsert(next)
		return true
	}
	_, changed := w.history.Update(docID, patch)
	return changed
}

func (w *Workspace) onDrained(res enrich.RunResult) {
	if w.cfg.DrainObserver != nil {
		w.cfg.DrainObserver.EnrichmentDrained(res)
	}
	w.mu.Lock()
	for _, id := range res.Abandoned {
		w.abandoned[id] = struct{}{}
	}
	w.mu.Unlock()
	w.scheduleEnrichment()
}

// scheduleEnrichment submits the pending items of the current document.
// While a run is active nothing is submitted; the drained hook rescans.
func (w *Workspace) scheduleEnrichment() bool {
	doc, ok := w.holder.Current()
	if !ok {
		return false
	}

	w.mu.Lock()
	var items []model.SuggestionItem
	for _, item := range doc.PendingItems() {
		if _, skip := w.abandoned[item.ID]; skip {
			continue
		}
		if w.inflight.Contains(item.ID) {
			continue
		}
		items = append(items, item)
	}
	w.mu.Unlock()

	return w.scheduler.Submit(w.ctx, enrich.Batch{
		DocumentID: doc.ID,
		Query:      doc.Query,
		Language:   w.languageOr(doc.Language),
		Items:      items,
	})
}

func (w *Workspace) languageOr(language string) string {
	if language = strings.TrimSpace(language); language != "" {
		return language
	}
	return w.cfg.Language
}
