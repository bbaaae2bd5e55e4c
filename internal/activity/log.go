// Package activity is the append-only event log of a workspace.
package activity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"issuecompass/internal/model"
)

type Sink interface {
	ActivityAppended(entry model.LogEntry)
}

type Log struct {
	mu      sync.RWMutex
	entries []model.LogEntry
	logger  *slog.Logger
	sink    Sink
	now     func() time.Time
}

func NewLog(logger *slog.Logger, sink Sink) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger, sink: sink, now: time.Now}
}

func (l *Log) Append(kind model.LogKind, message, details string) model.LogEntry {
	entry := model.LogEntry{
		ID:        uuid.NewString(),
		Timestamp: l.now(),
		Kind:      kind,
		Message:   message,
		Details:   details,
	}

	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()

	l.logger.Log(context.Background(), levelOf(kind), message, "kind", string(kind), "details", details)
	if l.sink != nil {
		l.sink.ActivityAppended(entry)
	}
	return entry
}

func (l *Log) Info(message, details string) model.LogEntry {
	return l.Append(model.LogInfo, message, details)
}

func (l *Log) Warning(message, details string) model.LogEntry {
	return l.Append(model.LogWarning, message, details)
}

func (l *Log) Error(message, details string) model.LogEntry {
	return l.Append(model.LogError, message, details)
}

func (l *Log) System(message, details string) model.LogEntry {
	return l.Append(model.LogSystem, message, details)
}

// Load places persisted entries ahead of anything already logged, skipping
// ids the log holds. Neither the logger nor the sink sees them.
func (l *Log) Load(entries []model.LogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	seen := make(map[string]struct{}, len(l.entries)+len(entries))
	for _, e := range l.entries {
		seen[e.ID] = struct{}{}
	}
	loaded := make([]model.LogEntry, 0, len(entries)+len(l.entries))
	for _, e := range entries {
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}
		loaded = append(loaded, e)
	}
	l.entries = append(loaded, l.entries...)
}

// Entries returns a copy in insertion order.
func (l *Log) Entries() []model.LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]model.LogEntry(nil), l.entries...)
}

func levelOf(kind model.LogKind) slog.Level {
	switch kind {
	case model.LogWarning:
		return slog.LevelWarn
	case model.LogError:
		return slog.LevelError
	case model.LogSystem:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
