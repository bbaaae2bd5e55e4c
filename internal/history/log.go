// Package history keeps the latest version of every ResultDocument seen in a
// workspace, one entry per document identity.
package history

import (
	"errors"
	"sync"

	"issuecompass/internal/model"
)

var ErrNotFound = errors.New("history entry not found")

// Sink receives every upserted version, e.g. for persistence.
type Sink interface {
	HistoryUpserted(doc model.ResultDocument)
}

type Log struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]model.ResultDocument
	sink    Sink
}

func NewLog(sink Sink) *Log {
	return &Log{entries: make(map[string]model.ResultDocument), sink: sink}
}

// Upsert replaces the entry with the same identity or appends a new one. An
// older version never replaces a newer one.
func (l *Log) Upsert(doc model.ResultDocument) {
	l.mu.Lock()
	existing, ok := l.entries[doc.ID]
	if ok && existing.Version > doc.Version {
		l.mu.Unlock()
		return
	}
	if !ok {
		l.order = append(l.order, doc.ID)
	}
	l.entries[doc.ID] = doc
	l.mu.Unlock()

	if l.sink != nil {
		l.sink.HistoryUpserted(doc)
	}
}

// Update applies fn to the stored entry for id. Nothing happens when the
// entry is missing or fn reports no change.
func (l *Log) Update(id string, fn func(model.ResultDocument) (model.ResultDocument, bool)) (model.ResultDocument, bool) {
	l.mu.Lock()
	existing, ok := l.entries[id]
	if !ok {
		l.mu.Unlock()
		return model.ResultDocument{}, false
	}
	next, changed := fn(existing)
	if !changed {
		l.mu.Unlock()
		return existing, false
	}
	l.entries[id] = next
	l.mu.Unlock()

	if l.sink != nil {
		l.sink.HistoryUpserted(next)
	}
	return next, true
}

// List returns entries in insertion order.
func (l *Log) List() []model.ResultDocument {
	l.mu.RLock()
	defer l.mu.RUnlock()
	docs := make([]model.ResultDocument, 0, len(l.order))
	for _, id := range l.order {
		docs = append(docs, l.entries[id])
	}
	return docs
}

func (l *Log) Get(id string) (model.ResultDocument, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	doc, ok := l.entries[id]
	return doc, ok
}

// Restore returns the stored version for re-activation as the current document.
func (l *Log) Restore(id string) (model.ResultDocument, error) {
	doc, ok := l.Get(id)
	if !ok {
		return model.ResultDocument{}, ErrNotFound
	}
	return doc, nil
}

// Load seeds the log with persisted documents without notifying the sink.
func (l *Log) Load(docs []model.ResultDocument) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, doc := range docs {
		if existing, ok := l.entries[doc.ID]; ok {
			if existing.Version < doc.Version {
				l.entries[doc.ID] = doc
			}
			continue
		}
		l.order = append(l.order, doc.ID)
		l.entries[doc.ID] = doc
	}
}
