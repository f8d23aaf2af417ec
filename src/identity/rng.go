package identity

import (
	crand "crypto/rand"
	"io"
	mrand "math/rand"
)

// Rand is an explicitly passed source of randomness. Production code uses the
// operating system's secure generator; tests construct a seeded source so that
// generated identities are reproducible. Passing the handle around, rather
// than reaching for a package-level generator, keeps key generation testable.
type Rand struct {
	r io.Reader
}

// NewRand returns a Rand backed by crypto/rand.
func NewRand() *Rand {
	return &Rand{r: crand.Reader}
}

// NewSeededRand returns a deterministic Rand for tests.
func NewSeededRand(seed int64) *Rand {
	return &Rand{r: mrand.New(mrand.NewSource(seed))}
}

// Reader exposes the underlying entropy stream.
func (r *Rand) Reader() io.Reader {
	return r.r
}
