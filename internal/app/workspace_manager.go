package app

import (
	"context"
	"log/slog"
	"sync"
)

// WorkspaceManager owns one Workspace per account, created on first use and
// hydrated from persisted history and activity.
type WorkspaceManager struct {
	client AnalysisClient
	cfg    WorkspaceConfig
	store  *HistoryStore
	logger *slog.Logger

	mu         sync.Mutex
	workspaces map[uint]*Workspace
	closed     bool
}

func NewWorkspaceManager(client AnalysisClient, cfg WorkspaceConfig, store *HistoryStore) *WorkspaceManager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkspaceManager{
		client:     client,
		cfg:        cfg,
		store:      store,
		logger:     logger,
		workspaces: make(map[uint]*Workspace),
	}
}

func (m *WorkspaceManager) Get(ctx context.Context, userID uint) (*Workspace, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrWorkspaceClosed
	}
	if ws, ok := m.workspaces[userID]; ok {
		return ws, nil
	}

	cfg := m.cfg
	cfg.Logger = m.logger.With("user_id", userID)
	if m.store != nil {
		sink := m.store.SinkFor(userID)
		cfg.HistorySink = sink
		cfg.ActivitySink = sink
	}
	ws := NewWorkspace(m.client, cfg)

	if m.store != nil {
		docs, err := m.store.LoadHistory(ctx, userID)
		if err != nil {
			m.logger.Warn("load persisted history failed", "user_id", userID, "error", err)
		} else {
			ws.Hydrate(docs)
		}
		entries, err := m.store.LoadActivity(ctx, userID)
		if err != nil {
			m.logger.Warn("load persisted activity failed", "user_id", userID, "error", err)
		} else {
			ws.HydrateLogs(entries)
		}
	}

	m.workspaces[userID] = ws
	return ws, nil
}

// Close stops every workspace's enrichment and rejects further Gets.
func (m *WorkspaceManager) Close() {
	m.mu.Lock()
	m.closed = true
	workspaces := make([]*Workspace, 0, len(m.workspaces))
	for _, ws := range m.workspaces {
		workspaces = append(workspaces, ws)
	}
	m.mu.Unlock()

	for _, ws := range workspaces {
		ws.Close()
	}
}
