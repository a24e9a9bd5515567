package publisher

import (
	"math/rand/v2"
	"sync"
)

// Sampler keeps a fraction of operational events. Compliance and security
// events are never sampled.
type Sampler struct {
	mu           sync.RWMutex
	defaultRate  float64
	rateByAction map[string]float64
	random       func() float64
}

// NewSampler creates a sampler with the given default rate in [0, 1].
func NewSampler(defaultRate float64) *Sampler {
	return &Sampler{
		defaultRate:  clampRate(defaultRate),
		rateByAction: make(map[string]float64),
		random:       rand.Float64, //nolint:gosec // sampling doesn't need crypto rand
	}
}

// Keep reports whether an event with action should be persisted.
func (s *Sampler) Keep(action string) bool {
	if s == nil {
		return true
	}
	s.mu.RLock()
	rate, ok := s.rateByAction[action]
	if !ok {
		rate = s.defaultRate
	}
	s.mu.RUnlock()
	return s.random() < rate
}

// SetRate overrides the rate for one action.
func (s *Sampler) SetRate(action string, rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rateByAction[action] = clampRate(rate)
}

func clampRate(rate float64) float64 {
	return min(max(rate, 0), 1)
}
