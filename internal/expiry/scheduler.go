// Package expiry cancels POS bills that stay pending past their deadline.
//
// Two mechanisms run side by side. A one-shot timer per bill fires at its
// deadline, and a periodic sweep cancels every pending bill whose durable
// deadline has passed. Timers are lost on restart; the sweep is not.
package expiry

import (
	"context"
	"log"
	"sync"
	"time"
)

type Expirer interface {
	ExpirePosBill(ctx context.Context, id int64) (bool, error)
	ExpireStalePosBills(ctx context.Context) (int, error)
}

type Scheduler struct {
	interval time.Duration
	timeout  time.Duration

	mu      sync.Mutex
	timers  map[int64]*time.Timer
	expirer Expirer
	ctx     context.Context
	cancel  context.CancelFunc
	stopped bool
	wg      sync.WaitGroup
}

func NewScheduler(interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		interval: interval,
		timeout:  30 * time.Second,
		timers:   make(map[int64]*time.Timer),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// ScheduleExpiry arms (or re-arms) the one-shot timer for a bill.
func (s *Scheduler) ScheduleExpiry(id int64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if t, ok := s.timers[id]; ok {
		t.Stop()
	}
	delay := time.Until(at)
	if delay < 0 {
		delay = 0
	}
	s.timers[id] = time.AfterFunc(delay, func() { s.fire(id) })
}

// Cancel disarms the timer of a bill that reached a terminal state.
func (s *Scheduler) Cancel(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
}

// Armed returns how many one-shot timers are waiting.
func (s *Scheduler) Armed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *Scheduler) fire(id int64) {
	s.mu.Lock()
	delete(s.timers, id)
	expirer, parent := s.expirer, s.ctx
	s.mu.Unlock()

	if expirer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	applied, err := expirer.ExpirePosBill(ctx, id)
	if err != nil {
		log.Printf("[expiry] WARN: timer for pos bill %d failed, sweep will retry: %v", id, err)
		return
	}
	if applied {
		log.Printf("[expiry] pos bill %d cancelled by timer", id)
	}
}

// Start binds the expirer and runs the periodic sweep until ctx ends or
// Stop is called. The first sweep runs immediately so bills that expired
// while the process was down are closed at boot.
func (s *Scheduler) Start(ctx context.Context, expirer Expirer) {
	s.mu.Lock()
	s.expirer = expirer
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.sweep()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}

func (s *Scheduler) sweep() {
	s.mu.Lock()
	expirer, ctx := s.expirer, s.ctx
	s.mu.Unlock()

	// No pass-wide deadline: the expirer bounds each bill on its own, and
	// Stop ends the pass through ctx.
	n, err := expirer.ExpireStalePosBills(ctx)
	if err != nil {
		log.Printf("[expiry] WARN: sweep failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[expiry] sweep cancelled %d pos bill(s)", n)
	}
}

// Stop disarms all timers and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}
