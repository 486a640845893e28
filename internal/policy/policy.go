package policy

import (
	"fmt"

	"github.com/angeloszaimis/backend-scheduler/internal/backend"
)

// Type identifies one of the selection algorithms. The set is closed:
// adding an algorithm means adding a constant, a factory entry and a
// descriptor here.
type Type string

const (
	TypeRoundRobin Type = "round_robin"
	TypeWeighted   Type = "weighted"
	TypeAllActive  Type = "all_active"
	TypeRandom     Type = "random"
)

// Config is the persisted selection configuration for one app id.
type Config struct {
	Type  Type `json:"type"`
	Limit int  `json:"limit"`
}

// Default returns the configuration applied to an app id that has never
// been configured explicitly.
func Default() Config {
	return Config{Type: TypeRoundRobin, Limit: 1}
}

// Error reports a request for a policy type outside the known set.
type Error struct {
	Type Type
}

func (e *Error) Error() string {
	return fmt.Sprintf("unknown policy type %q", string(e.Type))
}

// Policy selects an ordered subset of at most Limit() backends from the
// candidates of one app id. Candidates may mix active and down backends;
// implementations only ever return active ones.
type Policy interface {
	Type() Type
	Limit() int
	SetLimit(limit int)
	SelectBackends(candidates []*backend.Backend) []*backend.Backend
}

// factories is the dispatch table from type to constructor.
var factories = map[Type]func(limit int) Policy{
	TypeRoundRobin: NewRoundRobin,
	TypeWeighted:   NewWeighted,
	TypeAllActive:  NewAllActive,
	TypeRandom:     NewRandom,
}

// New constructs a live policy instance for the given type. A limit below
// one falls back to the default limit of one.
func New(t Type, limit int) (Policy, error) {
	factory, ok := factories[t]
	if !ok {
		return nil, &Error{Type: t}
	}

	if limit < 1 {
		limit = 1
	}

	return factory(limit), nil
}

// Known reports whether t names a supported policy type.
func Known(t Type) bool {
	_, ok := factories[t]
	return ok
}

// Descriptor describes one supported policy type for listing endpoints.
type Descriptor struct {
	Type        Type   `json:"type"`
	Limit       int    `json:"limit"`
	Description string `json:"description"`
}

// Descriptors returns the static list of supported policies with their
// default limits. The order is fixed so listings are stable.
func Descriptors() []Descriptor {
	return []Descriptor{
		{Type: TypeRoundRobin, Limit: 1, Description: "Rotates through active backends so each is visited once per cycle"},
		{Type: TypeWeighted, Limit: 3, Description: "Prefers backends with higher weight, ties keep registration order"},
		{Type: TypeAllActive, Limit: 1, Description: "Returns all active backends in registration order, capped at the limit"},
		{Type: TypeRandom, Limit: 1, Description: "Returns up to limit active backends drawn uniformly at random"},
	}
}

// activeOnly filters candidates down to the backends eligible for
// selection, preserving their order.
func activeOnly(candidates []*backend.Backend) []*backend.Backend {
	active := make([]*backend.Backend, 0, len(candidates))

	for _, b := range candidates {
		if b.Active() {
			active = append(active, b)
		}
	}

	return active
}

// capped returns at most limit backends from the front of the list.
func capped(backends []*backend.Backend, limit int) []*backend.Backend {
	if limit > 0 && len(backends) > limit {
		return backends[:limit]
	}

	return backends
}
