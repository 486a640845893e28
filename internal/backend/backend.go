package backend

import (
	"github.com/google/uuid"
)

// State is the explicit lifecycle state of a registered backend.
// Transitions happen only through explicit update calls, never
// automatically.
type State string

const (
	StateActive State = "active"
	StateDown   State = "down"
)

// Valid reports whether s is one of the known states.
func (s State) Valid() bool {
	return s == StateActive || s == StateDown
}

const DefaultWeight = 1

// Backend is a worker instance registered under an application id.
// Backends sharing an AppID are candidates for the same selection call.
type Backend struct {
	ID         string `json:"id"`
	AppID      string `json:"app_id"`
	InstanceID string `json:"instance_id"`
	Weight     int    `json:"weight"`
	State      State  `json:"state"`
}

// New creates a Backend record with a freshly generated unique id.
// The id is generated here, per record, so two records can never share one.
// A non-positive weight falls back to DefaultWeight and an empty state
// falls back to active.
func New(appID, instanceID string, weight int, state State) *Backend {
	if weight < 1 {
		weight = DefaultWeight
	}
	if state == "" {
		state = StateActive
	}

	return &Backend{
		ID:         uuid.NewString(),
		AppID:      appID,
		InstanceID: instanceID,
		Weight:     weight,
		State:      state,
	}
}

// Active reports whether the backend may be handed out by a selection call.
func (b *Backend) Active() bool {
	return b.State == StateActive
}
