package app

import (
	"sort"
	"sync"
	"time"

	"github.com/evanschultz/stageboard/internal/domain"
)

// Event notifies subscribers of one committed board mutation.
type Event struct {
	Operation  domain.ChangeOperation `json:"operation"`
	EntityType string                 `json:"entity_type"`
	EntityID   string                 `json:"entity_id"`
	SectionID  string                 `json:"section_id,omitempty"`
	Stage      domain.Stage           `json:"stage,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// broker fans events out to subscribers in subscription order.
type broker struct {
	mu   sync.RWMutex
	next int
	subs map[int]func(Event)
}

func newBroker() *broker {
	return &broker{subs: map[int]func(Event){}}
}

func (b *broker) subscribe(fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	b.subs[id] = fn
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
		})
	}
}

func (b *broker) publish(ev Event) {
	b.mu.RLock()
	ids := make([]int, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, b.subs[id])
	}
	b.mu.RUnlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// Subscribe registers fn for every committed mutation. Callbacks run on the mutating
// goroutine and must not block. The returned func unsubscribes.
func (s *Service) Subscribe(fn func(Event)) func() {
	return s.events.subscribe(fn)
}

func (s *Service) publish(op domain.ChangeOperation, entityType, entityID, sectionID string, stage domain.Stage) {
	s.events.publish(Event{
		Operation:  op,
		EntityType: entityType,
		EntityID:   entityID,
		SectionID:  sectionID,
		Stage:      stage,
		OccurredAt: s.clock().UTC(),
	})
}
