package enrich

import "sync"

type State string

const (
	StateIdle     State = "idle"
	StateDraining State = "draining"
	StateCooling  State = "cooling"
	StateRetrying State = "retrying"
	StateDrained  State = "drained"
)

type Progress struct {
	DocumentID string `json:"document_id"`
	State      State  `json:"state"`
	Completed  int    `json:"completed"`
	Total      int    `json:"total"`
	Status     string `json:"status"`
}

// broadcaster fans progress out to subscribers. A subscriber that does not
// keep up loses events rather than stalling the drain loop.
type broadcaster struct {
	mu     sync.Mutex
	subs   map[int]chan Progress
	nextID int
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[int]chan Progress)}
}

func (b *broadcaster) subscribe(buffer int) (<-chan Progress, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Progress, buffer)
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
}

func (b *broadcaster) publish(p Progress) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- p:
		default:
		}
	}
}
