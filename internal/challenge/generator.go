package challenge

import (
	"math/rand/v2"
	"sync"

	"github.com/emperorhan/holder-gate/internal/domain/model"
)

// Bounds of the challenge range in ten-thousandths: [1.0100, 1.6999).
const (
	MinAmount model.Amount = 10100
	MaxAmount model.Amount = 16999
)

// Generator draws self-transfer challenge amounts. Amounts are not checked
// against other pending challenges; two attempts may share an amount.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator returns a generator seeded from the runtime's random source.
func NewGenerator() *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

// NewSeededGenerator returns a deterministic generator.
func NewSeededGenerator(seed1, seed2 uint64) *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(seed1, seed2))}
}

// Generate returns a uniformly drawn amount with exactly four fraction digits.
func (g *Generator) Generate() model.Amount {
	g.mu.Lock()
	defer g.mu.Unlock()
	return MinAmount + model.Amount(g.rng.Int64N(int64(MaxAmount-MinAmount)))
}
