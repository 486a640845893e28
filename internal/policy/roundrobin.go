package policy

import (
	"sync"

	"github.com/angeloszaimis/backend-scheduler/internal/backend"
)

// roundRobin rotates through the active backends. The cursor indexes into
// the last observed active ordering; across len(active) consecutive calls
// with limit 1 every active backend is visited exactly once, in
// registration order, before any repeats.
type roundRobin struct {
	mutex  sync.Mutex
	limit  int
	cursor int
}

// NewRoundRobin creates a round-robin policy with a cursor starting at the
// first registered backend.
func NewRoundRobin(limit int) Policy {
	return &roundRobin{limit: limit}
}

func (p *roundRobin) Type() Type {
	return TypeRoundRobin
}

func (p *roundRobin) Limit() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.limit
}

// SetLimit changes the result cap without touching the cursor, so a limit
// change never restarts the rotation.
func (p *roundRobin) SetLimit(limit int) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.limit = limit
}

func (p *roundRobin) SelectBackends(candidates []*backend.Backend) []*backend.Backend {
	active := activeOnly(candidates)
	if len(active) == 0 {
		return nil
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	// The active set may have shrunk since the cursor was advanced.
	start := p.cursor % len(active)

	view := make([]*backend.Backend, 0, len(active))
	view = append(view, active[start:]...)
	view = append(view, active[:start]...)

	effective := p.limit
	if effective > len(active) {
		effective = len(active)
	}
	p.cursor = (start + effective) % len(active)

	return capped(view, p.limit)
}
