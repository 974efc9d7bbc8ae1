package expiry

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeExpirer struct {
	mu      sync.Mutex
	expired []int64
	sweeps  int
	bounded bool
	fired   chan int64
	swept   chan struct{}
}

func newFakeExpirer() *fakeExpirer {
	return &fakeExpirer{fired: make(chan int64, 8), swept: make(chan struct{}, 8)}
}

func (f *fakeExpirer) ExpirePosBill(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	f.expired = append(f.expired, id)
	f.mu.Unlock()
	select {
	case f.fired <- id:
	default:
	}
	return true, nil
}

func (f *fakeExpirer) ExpireStalePosBills(ctx context.Context) (int, error) {
	f.mu.Lock()
	f.sweeps++
	if _, ok := ctx.Deadline(); ok {
		f.bounded = true
	}
	f.mu.Unlock()
	select {
	case f.swept <- struct{}{}:
	default:
	}
	return 0, nil
}

func TestTimerFiresAtDeadline(t *testing.T) {
	s := NewScheduler(time.Hour)
	exp := newFakeExpirer()
	s.Start(context.Background(), exp)
	defer s.Stop()
	<-exp.swept

	s.ScheduleExpiry(42, time.Now().Add(20*time.Millisecond))

	select {
	case id := <-exp.fired:
		if id != 42 {
			t.Fatalf("expected bill 42 to expire, got %d", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timer did not fire")
	}
	if s.Armed() != 0 {
		t.Fatalf("expected fired timer to be forgotten, %d armed", s.Armed())
	}
}

func TestCancelDisarmsTimer(t *testing.T) {
	s := NewScheduler(time.Hour)
	exp := newFakeExpirer()
	s.Start(context.Background(), exp)
	defer s.Stop()
	<-exp.swept

	s.ScheduleExpiry(7, time.Now().Add(30*time.Millisecond))
	s.Cancel(7)

	select {
	case id := <-exp.fired:
		t.Fatalf("expected no expiry after cancel, got %d", id)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestSweepRunsAtStartAndOnInterval(t *testing.T) {
	s := NewScheduler(20 * time.Millisecond)
	exp := newFakeExpirer()
	s.Start(context.Background(), exp)
	defer s.Stop()

	for i := 0; i < 3; i++ {
		select {
		case <-exp.swept:
		case <-time.After(2 * time.Second):
			t.Fatalf("sweep %d did not run", i+1)
		}
	}
}

func TestStopDisarmsEverything(t *testing.T) {
	s := NewScheduler(time.Hour)
	s.ScheduleExpiry(1, time.Now().Add(time.Hour))
	s.ScheduleExpiry(2, time.Now().Add(time.Hour))
	s.Stop()

	if s.Armed() != 0 {
		t.Fatalf("expected no armed timers after stop, got %d", s.Armed())
	}
	s.ScheduleExpiry(3, time.Now())
	if s.Armed() != 0 {
		t.Fatalf("expected schedule after stop to be ignored")
	}
}

func TestSweepPassHasNoSharedDeadline(t *testing.T) {
	s := NewScheduler(time.Hour)
	exp := newFakeExpirer()
	s.Start(context.Background(), exp)
	<-exp.swept
	s.Stop()

	exp.mu.Lock()
	defer exp.mu.Unlock()
	if exp.bounded {
		t.Fatalf("expected the sweep pass to run without a pass-wide deadline")
	}
}
