// Package billid issues human-readable bill identifiers of the form
// BILL######.
package billid

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

const (
	Prefix     = "BILL"
	digits     = 6
	maxAttempt = 20
)

var ErrIDSpaceExhausted = errors.New("bill id space exhausted")

// Claimer records an id as issued and reports false if it already was.
type Claimer interface {
	ClaimBillID(ctx context.Context, id string) (bool, error)
}

type Generator struct {
	claimer Claimer
	source  func() string
}

func New(claimer Claimer) *Generator {
	return &Generator{
		claimer: claimer,
		source:  func() string { return uuid.NewString() },
	}
}

// Generate returns an id no earlier call has returned. Each candidate is
// claimed in the store, so concurrent callers never share one.
func (g *Generator) Generate(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxAttempt; attempt++ {
		candidate := Candidate(g.source())
		claimed, err := g.claimer.ClaimBillID(ctx, candidate)
		if err != nil {
			return "", err
		}
		if claimed {
			return candidate, nil
		}
	}
	return "", ErrIDSpaceExhausted
}

// Candidate keeps the first six digits of seed, left-padded with zeros.
func Candidate(seed string) string {
	var b strings.Builder
	b.Grow(len(Prefix) + digits)
	b.WriteString(Prefix)

	found := make([]byte, 0, digits)
	for i := 0; i < len(seed) && len(found) < digits; i++ {
		if seed[i] >= '0' && seed[i] <= '9' {
			found = append(found, seed[i])
		}
	}
	for i := len(found); i < digits; i++ {
		b.WriteByte('0')
	}
	b.Write(found)
	return b.String()
}

// Valid reports whether id has the BILL###### shape.
func Valid(id string) bool {
	if len(id) != len(Prefix)+digits || !strings.HasPrefix(id, Prefix) {
		return false
	}
	for _, c := range id[len(Prefix):] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
