package enrich

import "sync"

// InFlight marks items whose detail request is outstanding. The automatic
// drain and the on-demand fetch share one set per workspace.
type InFlight struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func NewInFlight() *InFlight {
	return &InFlight{ids: make(map[string]struct{})}
}

// Acquire marks id and reports whether the caller now owns it.
func (f *InFlight) Acquire(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, busy := f.ids[id]; busy {
		return false
	}
	f.ids[id] = struct{}{}
	return true
}

func (f *InFlight) Release(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.ids, id)
}

func (f *InFlight) Contains(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, busy := f.ids[id]
	return busy
}
