package policy

import (
	"math/rand/v2"
	"sync"

	"github.com/angeloszaimis/backend-scheduler/internal/backend"
)

// random returns a uniformly random permutation of the active backends,
// capped at the limit. No state survives between calls.
type random struct {
	mutex sync.Mutex
	limit int
}

// NewRandom creates a random-permutation policy.
func NewRandom(limit int) Policy {
	return &random{limit: limit}
}

func (p *random) Type() Type {
	return TypeRandom
}

func (p *random) Limit() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.limit
}

func (p *random) SetLimit(limit int) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.limit = limit
}

func (p *random) SelectBackends(candidates []*backend.Backend) []*backend.Backend {
	active := activeOnly(candidates)
	if len(active) == 0 {
		return nil
	}

	shuffled := make([]*backend.Backend, len(active))
	copy(shuffled, active)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	return capped(shuffled, p.Limit())
}
