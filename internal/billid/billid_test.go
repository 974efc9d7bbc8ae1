package billid

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"

	"cartify/backend/internal/store/memory"
)

var billPattern = regexp.MustCompile(`^BILL\d{6}$`)

type rejectAll struct{ calls int }

func (r *rejectAll) ClaimBillID(_ context.Context, _ string) (bool, error) {
	r.calls++
	return false, nil
}

type failing struct{}

func (failing) ClaimBillID(_ context.Context, _ string) (bool, error) {
	return false, errors.New("store unavailable")
}

func TestCandidate(t *testing.T) {
	cases := map[string]string{
		"9f1c2a07-3b4d-4e5f-8a9b-0c1d2e3f4a5b": "BILL912073",
		"abc1-def2":                            "BILL000012",
		"no digits here":                       "BILL000000",
		"0012345678":                           "BILL001234",
	}
	for seed, want := range cases {
		if got := Candidate(seed); got != want {
			t.Fatalf("Candidate(%q) = %q, want %q", seed, got, want)
		}
	}
}

func TestGenerateConcurrentIDsAreUnique(t *testing.T) {
	gen := New(memory.New())

	const workers = 1000
	ids := make(chan string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := gen.Generate(context.Background())
			if err != nil {
				t.Errorf("generate: %v", err)
				return
			}
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool, workers)
	for id := range ids {
		if !billPattern.MatchString(id) || !Valid(id) {
			t.Fatalf("unexpected id shape %q", id)
		}
		if seen[id] {
			t.Fatalf("id %s issued twice", id)
		}
		seen[id] = true
	}
	if len(seen) != workers {
		t.Fatalf("expected %d ids, got %d", workers, len(seen))
	}
}

func TestGenerateGivesUpAfterCap(t *testing.T) {
	claimer := &rejectAll{}
	_, err := New(claimer).Generate(context.Background())
	if !errors.Is(err, ErrIDSpaceExhausted) {
		t.Fatalf("expected ErrIDSpaceExhausted, got %v", err)
	}
	if claimer.calls != maxAttempt {
		t.Fatalf("expected %d attempts, got %d", maxAttempt, claimer.calls)
	}
}

func TestGenerateRetriesOnCollision(t *testing.T) {
	store := memory.New()
	gen := New(store)
	seeds := []string{"111111", "111111", "222222"}
	gen.source = func() string {
		seed := seeds[0]
		seeds = seeds[1:]
		return seed
	}

	first, err := gen.Generate(context.Background())
	if err != nil || first != "BILL111111" {
		t.Fatalf("first id = %q, %v", first, err)
	}
	second, err := gen.Generate(context.Background())
	if err != nil || second != "BILL222222" {
		t.Fatalf("expected collision to be skipped, got %q, %v", second, err)
	}
}

func TestGeneratePropagatesStoreErrors(t *testing.T) {
	if _, err := New(failing{}).Generate(context.Background()); err == nil || errors.Is(err, ErrIDSpaceExhausted) {
		t.Fatalf("expected store error, got %v", err)
	}
}
