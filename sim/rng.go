// sim/rng.go
package sim

import "math/rand"

// SimulationKey uniquely identifies a reproducible simulation run.
// Two simulations with the same SimulationKey and identical configuration
// MUST produce bit-for-bit identical results.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// Sampler is the single seeded generator owned by the Executor and threaded
// explicitly into publish sampling. It is not process-wide state.
//
// Thread-safety: NOT thread-safe. Must be called from a single goroutine.
type Sampler struct {
	key SimulationKey
	rng *rand.Rand
}

// NewSampler creates a Sampler seeded from key.
func NewSampler(key SimulationKey) *Sampler {
	return &Sampler{
		key: key,
		rng: rand.New(rand.NewSource(int64(key))),
	}
}

// IntInRange samples uniformly from the inclusive interval [lo, hi].
// Degenerate intervals return lo without consuming a draw.
func (s *Sampler) IntInRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + s.rng.Intn(hi-lo+1)
}

// Sample draws from an inclusive Range.
func (s *Sampler) Sample(r Range) int {
	return s.IntInRange(r.Lo(), r.Hi())
}

// Key returns the SimulationKey used to create this Sampler.
func (s *Sampler) Key() SimulationKey {
	return s.key
}
