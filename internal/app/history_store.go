package app

import (
	"context"
	"log/slog"
	"time"

	"issuecompass/internal/model"
)

const (
	historyLoadLimit  = 100
	activityLoadLimit = 200
	publishTimeout   = 3 * time.Second
)

type HistoryRepository interface {
	ListByUserID(userID uint, limit int) ([]model.HistoryRecord, error)
}

type ActivityRepository interface {
	ListByUserID(userID uint, limit int) ([]model.ActivityRecord, error)
}

type HistoryCache interface {
	GetHistory(ctx context.Context, userID uint) ([]model.ResultDocument, bool, error)
	SetHistory(ctx context.Context, userID uint, docs []model.ResultDocument) error
	Invalidate(ctx context.Context, userID uint) error
	IsDirty(ctx context.Context, userID uint) (bool, error)
}

type EventPublisher interface {
	PublishHistory(ctx context.Context, event model.HistoryEvent) error
	PublishActivity(ctx context.Context, event model.ActivityEvent) error
}

// HistoryStore reads persisted history (Redis first, MySQL on a miss or a
// dirty marker) and the activity log, and hands out per-account sinks that
// publish new versions and activity entries for the persistence worker.
type HistoryStore struct {
	repo      HistoryRepository
	activity  ActivityRepository
	cache     HistoryCache
	publisher EventPublisher
	logger    *slog.Logger
}

func NewHistoryStore(repo HistoryRepository, activity ActivityRepository, cache HistoryCache, publisher EventPublisher, logger *slog.Logger) *HistoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryStore{repo: repo, activity: activity, cache: cache, publisher: publisher, logger: logger}
}

func (s *HistoryStore) LoadHistory(ctx context.Context, userID uint) ([]model.ResultDocument, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}

	if s.cache != nil {
		dirty, err := s.cache.IsDirty(ctx, userID)
		if err == nil && !dirty {
			if cached, hit, cacheErr := s.cache.GetHistory(ctx, userID); cacheErr == nil && hit {
				return cached, nil
			}
		}
	}

	if s.repo == nil {
		return nil, nil
	}
	records, err := s.repo.ListByUserID(userID, historyLoadLimit)
	if err != nil {
		return nil, err
	}
	docs := make([]model.ResultDocument, 0, len(records))
	for _, record := range records {
		doc, err := record.Document()
		if err != nil {
			s.logger.Warn("skip unreadable history snapshot", "user_id", userID, "document_id", record.DocumentID, "error", err)
			continue
		}
		docs = append(docs, doc)
	}

	if s.cache != nil {
		if dirty, dirtyErr := s.cache.IsDirty(ctx, userID); dirtyErr == nil && !dirty {
			_ = s.cache.SetHistory(ctx, userID, docs)
		}
	}
	return docs, nil
}

// LoadActivity returns the account's most recent persisted log entries,
// oldest first.
func (s *HistoryStore) LoadActivity(ctx context.Context, userID uint) ([]model.LogEntry, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	if s.activity == nil {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	records, err := s.activity.ListByUserID(userID, activityLoadLimit)
	if err != nil {
		return nil, err
	}
	entries := make([]model.LogEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, record.Entry())
	}
	return entries, nil
}

// SinkFor returns the persistence sink of one account. It implements both
// history.Sink and activity.Sink.
func (s *HistoryStore) SinkFor(userID uint) *PersistSink {
	return &PersistSink{store: s, userID: userID}
}

type PersistSink struct {
	store  *HistoryStore
	userID uint
}

func (p *PersistSink) HistoryUpserted(doc model.ResultDocument) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	s := p.store
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, p.userID); err != nil {
			s.logger.Warn("invalidate history cache failed", "user_id", p.userID, "error", err)
		}
	}
	if s.publisher == nil {
		return
	}
	event := model.HistoryEvent{UserID: p.userID, Document: doc}
	if err := s.publisher.PublishHistory(ctx, event); err != nil {
		s.logger.Error("publish history event failed", "user_id", p.userID, "document_id", doc.ID, "version", doc.Version, "error", err)
	}
}

func (p *PersistSink) ActivityAppended(entry model.LogEntry) {
	s := p.store
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := s.publisher.PublishActivity(ctx, model.ActivityEvent{UserID: p.userID, Entry: entry}); err != nil {
		s.logger.Error("publish activity event failed", "user_id", p.userID, "entry_id", entry.ID, "error", err)
	}
}
