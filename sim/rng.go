package sim

import (
	"hash/fnv"
	"math/rand"
	"sync"
)

// SimulationKey uniquely identifies a reproducible simulation run.
// Two runs with the same SimulationKey and identical model hierarchy
// MUST produce identical transition sequences.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// PartitionedRNG provides deterministic, isolated random streams, one per
// model. A model's stream depends only on the key and the model's full name,
// so adding or removing unrelated models never perturbs it.
//
// Derivation: masterSeed XOR fnv1a64(streamName).
//
// Stream lookup is safe for concurrent use; each returned *rand.Rand must
// only be used by the model it belongs to, inside its transition functions.
type PartitionedRNG struct {
	key SimulationKey

	mu      sync.Mutex
	streams map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:     key,
		streams: make(map[string]*rand.Rand),
	}
}

// ForStream returns a deterministically-seeded RNG for the named stream.
// The same name always returns the same *rand.Rand instance (cached).
func (p *PartitionedRNG) ForStream(name string) *rand.Rand {
	p.mu.Lock()
	defer p.mu.Unlock()
	if rng, ok := p.streams[name]; ok {
		return rng
	}
	rng := rand.New(rand.NewSource(int64(p.key) ^ fnv1a64(name)))
	p.streams[name] = rng
	return rng
}

// ForModel returns the stream of model m, keyed by its full name.
func ForModel[T any](p *PartitionedRNG, m Model[T]) *rand.Rand {
	return p.ForStream(m.FullName())
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
