package store

import (
	"context"

	"github.com/angeloszaimis/backend-scheduler/internal/backend"
	"github.com/angeloszaimis/backend-scheduler/internal/policy"
)

// Store is durable CRUD over backend records and per-app policy
// configuration. Implementations enforce registry-wide instance id
// uniqueness and signal failures through the typed errors in this
// package; listing operations return an empty slice, never an error,
// when nothing matches.
type Store interface {
	// AddBackend persists a new backend record. It fails with
	// *ConflictError if the instance id exists anywhere in the registry.
	AddBackend(ctx context.Context, b *backend.Backend) (*backend.Backend, error)

	// ListBackends returns every backend in the registry in
	// registration order.
	ListBackends(ctx context.Context) ([]*backend.Backend, error)

	// ListAppBackends returns the backends of one app id in
	// registration order.
	ListAppBackends(ctx context.Context, appID string) ([]*backend.Backend, error)

	// RemoveBackend deletes the record matching both keys and returns
	// it. It fails with *NotFoundError if no record matches.
	RemoveBackend(ctx context.Context, appID, backendID string) (*backend.Backend, error)

	// UpdateBackendState sets the explicit state of a backend. It fails
	// with *ValidationError for unknown states and *NotFoundError for
	// missing records.
	UpdateBackendState(ctx context.Context, appID, backendID string, state backend.State) (*backend.Backend, error)

	// UpdateBackendWeight sets the selection weight of a backend. It
	// fails with *ValidationError for weights below one.
	UpdateBackendWeight(ctx context.Context, appID, backendID string, weight int) (*backend.Backend, error)

	// UpdateBackendApp reassigns a backend to another app id. It fails
	// with *ValidationError for an empty new app id.
	UpdateBackendApp(ctx context.Context, appID, backendID, newAppID string) (*backend.Backend, error)

	// GetPolicy returns the persisted policy configuration of one app
	// id, failing with *NotFoundError if none was ever stored.
	GetPolicy(ctx context.Context, appID string) (policy.Config, error)

	// UpsertPolicy creates or overwrites the policy configuration of
	// one app id.
	UpsertPolicy(ctx context.Context, appID string, cfg policy.Config) (policy.Config, error)
}
