package policy

import (
	"sync"

	"github.com/angeloszaimis/backend-scheduler/internal/backend"
)

// allActive returns every active backend in registration order, capped at
// the limit. It carries no state between calls.
type allActive struct {
	mutex sync.Mutex
	limit int
}

// NewAllActive creates an all-active policy.
func NewAllActive(limit int) Policy {
	return &allActive{limit: limit}
}

func (p *allActive) Type() Type {
	return TypeAllActive
}

func (p *allActive) Limit() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.limit
}

func (p *allActive) SetLimit(limit int) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.limit = limit
}

func (p *allActive) SelectBackends(candidates []*backend.Backend) []*backend.Backend {
	active := activeOnly(candidates)
	if len(active) == 0 {
		return nil
	}

	return capped(active, p.Limit())
}
