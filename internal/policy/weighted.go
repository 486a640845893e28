package policy

import (
	"sort"
	"sync"

	"github.com/angeloszaimis/backend-scheduler/internal/backend"
)

// weighted orders active backends by descending weight. The sort is
// stable, so equal-weight backends keep their registration order.
type weighted struct {
	mutex sync.Mutex
	limit int
}

// NewWeighted creates a weight-ordered policy.
func NewWeighted(limit int) Policy {
	return &weighted{limit: limit}
}

func (p *weighted) Type() Type {
	return TypeWeighted
}

func (p *weighted) Limit() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.limit
}

func (p *weighted) SetLimit(limit int) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.limit = limit
}

func (p *weighted) SelectBackends(candidates []*backend.Backend) []*backend.Backend {
	active := activeOnly(candidates)
	if len(active) == 0 {
		return nil
	}

	sorted := make([]*backend.Backend, len(active))
	copy(sorted, active)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Weight > sorted[j].Weight
	})

	return capped(sorted, p.Limit())
}
