package order

import (
	"math/rand"
	"sync"

	"github.com/google/uuid"
)

// UUIDGenerator produces random v4 UUIDs via uuid.New().String().
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string { return uuid.New().String() }

// SeededGenerator produces reproducible, UUID-formatted IDs from 16 random
// bytes drawn from a seeded math/rand source, so that a backtest run with a fixed seed
// reproduces identical order IDs across reruns.
type SeededGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSeededGenerator builds a SeededGenerator from an explicit seed.
func NewSeededGenerator(seed int64) *SeededGenerator {
	return &SeededGenerator{rng: rand.New(rand.NewSource(seed))}
}

func (g *SeededGenerator) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var b [16]byte
	for i := range b {
		b[i] = byte(g.rng.Intn(256))
	}
	id, err := uuid.FromBytes(b[:])
	if err != nil {
		// uuid.FromBytes only fails on wrong-length input, which cannot
		// happen here.
		panic(err)
	}
	return id.String()
}
