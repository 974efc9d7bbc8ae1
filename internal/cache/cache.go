package cache

import (
	"context"
	"sync"
	"time"
)

// EventDeduper remembers processed webhook event ids. It only short-cuts
// redelivered events; correctness still rests on the conditional status
// transition in the store.
type EventDeduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string, ttl time.Duration) error
}

type NoopEventDeduper struct{}

func (NoopEventDeduper) Seen(_ context.Context, _ string) (bool, error) {
	return false, nil
}

func (NoopEventDeduper) Mark(_ context.Context, _ string, _ time.Duration) error {
	return nil
}

// MemoryEventDeduper keeps ids in process; used when Redis is not configured.
type MemoryEventDeduper struct {
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

func NewMemoryEventDeduper() *MemoryEventDeduper {
	return &MemoryEventDeduper{seen: make(map[string]time.Time), now: time.Now}
}

func (d *MemoryEventDeduper) Seen(_ context.Context, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	expiresAt, ok := d.seen[eventID]
	if !ok {
		return false, nil
	}
	if d.now().After(expiresAt) {
		delete(d.seen, eventID)
		return false, nil
	}
	return true, nil
}

func (d *MemoryEventDeduper) Mark(_ context.Context, eventID string, ttl time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for id, expiresAt := range d.seen {
		if now.After(expiresAt) {
			delete(d.seen, id)
		}
	}
	d.seen[eventID] = now.Add(ttl)
	return nil
}
