package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryEventDeduperExpires(t *testing.T) {
	d := NewMemoryEventDeduper()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }
	ctx := context.Background()

	if seen, _ := d.Seen(ctx, "evt_1"); seen {
		t.Fatalf("expected unseen event")
	}
	if err := d.Mark(ctx, "evt_1", time.Hour); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if seen, _ := d.Seen(ctx, "evt_1"); !seen {
		t.Fatalf("expected event to be remembered")
	}

	now = now.Add(2 * time.Hour)
	if seen, _ := d.Seen(ctx, "evt_1"); seen {
		t.Fatalf("expected event to be forgotten after ttl")
	}
}
