package store

import (
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// NameGenerator produces scratch table names for the three-way rename.
type NameGenerator interface {
	Generate() string
}

// UUIDNameGenerator derives scratch names from random UUIDs. The result is a
// valid bare SQL identifier.
//
// Thread-safety: UUIDNameGenerator is stateless and safe for concurrent use.
type UUIDNameGenerator struct{}

// Generate returns a name such as "swap_0f8c2c8e4d9b4b6f9d1a2e3c4b5a6978".
func (UUIDNameGenerator) Generate() string {
	return "swap_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// SequenceGenerator returns numbered names for deterministic tests.
//
// Thread-safety: SequenceGenerator is safe for concurrent use via internal mutex.
type SequenceGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceGenerator returns a generator yielding prefix_1, prefix_2, ...
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	return &SequenceGenerator{prefix: prefix}
}

// Generate returns the next name in the sequence.
func (g *SequenceGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return g.prefix + "_" + strconv.Itoa(g.n)
}
