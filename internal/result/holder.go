package result

import (
	"sync"

	"issuecompass/internal/model"
)

// Holder owns the current document. Readers get whole values; writers swap
// them under the lock.
type Holder struct {
	mu          sync.RWMutex
	current     *model.ResultDocument
	subscribers map[int]chan model.ResultDocument
	nextSubID   int
}

func NewHolder() *Holder {
	return &Holder{subscribers: make(map[int]chan model.ResultDocument)}
}

func (h *Holder) Current() (model.ResultDocument, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.current == nil {
		return model.ResultDocument{}, false
	}
	return *h.current, true
}

// Publish replaces the current document and notifies subscribers.
func (h *Holder) Publish(doc model.ResultDocument) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = &doc
	h.notifyLocked(doc)
}

// Update applies fn to the current document atomically. fn returns the next
// version and whether it changed anything.
func (h *Holder) Update(fn func(model.ResultDocument) (model.ResultDocument, bool)) (model.ResultDocument, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil {
		return model.ResultDocument{}, false
	}
	next, changed := fn(*h.current)
	if !changed {
		return *h.current, false
	}
	h.current = &next
	h.notifyLocked(next)
	return next, true
}

// Subscribe returns a channel that always holds the latest published version
// (older undelivered versions are dropped) and a cancel func.
func (h *Holder) Subscribe() (<-chan model.ResultDocument, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan model.ResultDocument, 1)
	id := h.nextSubID
	h.nextSubID++
	h.subscribers[id] = ch
	if h.current != nil {
		ch <- *h.current
	}
	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subscribers[id]; ok {
			delete(h.subscribers, id)
			close(sub)
		}
	}
}

func (h *Holder) notifyLocked(doc model.ResultDocument) {
	for _, ch := range h.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- doc
	}
}
