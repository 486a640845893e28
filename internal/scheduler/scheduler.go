package scheduler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/angeloszaimis/backend-scheduler/internal/backend"
	"github.com/angeloszaimis/backend-scheduler/internal/policy"
	"github.com/angeloszaimis/backend-scheduler/internal/store"
)

// Scheduler orchestrates the registry store and the per-app policy
// runtimes. Store errors pass through unchanged so callers can tell a
// conflict from a missing record from bad input.
type Scheduler struct {
	store         store.Store
	logger        *slog.Logger
	runtimes      *runtimeCache
	defaultPolicy policy.Config
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithDefaultPolicy overrides the configuration applied to an app id
// that has never been configured explicitly.
func WithDefaultPolicy(cfg policy.Config) Option {
	return func(s *Scheduler) {
		s.defaultPolicy = cfg
	}
}

// New creates a Scheduler on top of the given store.
func New(st store.Store, logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Scheduler{
		store:         st,
		logger:        logger,
		runtimes:      newRuntimeCache(),
		defaultPolicy: policy.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// RegisterBackend persists a new backend and returns it together with
// the effective policy of its app id. The first registration for an app
// id creates the default policy configuration.
func (s *Scheduler) RegisterBackend(ctx context.Context, b *backend.Backend) (*backend.Backend, policy.Config, error) {
	stored, err := s.store.AddBackend(ctx, b)
	if err != nil {
		return nil, policy.Config{}, err
	}

	cfg, err := s.effectivePolicy(ctx, stored.AppID)
	if err != nil {
		return nil, policy.Config{}, err
	}

	s.logger.Info("backend registered",
		slog.String("app_id", stored.AppID),
		slog.String("backend_id", stored.ID),
		slog.String("instance_id", stored.InstanceID),
		slog.String("policy_type", string(cfg.Type)))

	return stored, cfg, nil
}

// effectivePolicy loads the persisted policy of an app id, creating the
// default configuration on first use.
func (s *Scheduler) effectivePolicy(ctx context.Context, appID string) (policy.Config, error) {
	cfg, err := s.store.GetPolicy(ctx, appID)
	if err == nil {
		return cfg, nil
	}

	var notFound *store.NotFoundError
	if !errors.As(err, &notFound) {
		return policy.Config{}, err
	}

	return s.store.UpsertPolicy(ctx, appID, s.defaultPolicy)
}

// SelectBackends picks the subset of an app's backends that should
// handle the next request, according to the app's persisted policy. An
// app id without registered backends yields an empty selection, not an
// error.
func (s *Scheduler) SelectBackends(ctx context.Context, appID string) ([]*backend.Backend, error) {
	candidates, err := s.store.ListAppBackends(ctx, appID)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []*backend.Backend{}, nil
	}

	rt := s.runtimes.entry(appID)
	rt.mutex.Lock()
	defer rt.mutex.Unlock()

	cfg, err := s.effectivePolicy(ctx, appID)
	if err != nil {
		return nil, err
	}

	if err := rt.reconcile(cfg); err != nil {
		return nil, err
	}

	selected := rt.policy.SelectBackends(candidates)
	if selected == nil {
		selected = []*backend.Backend{}
	}

	s.logger.Debug("backends selected",
		slog.String("app_id", appID),
		slog.String("policy_type", string(cfg.Type)),
		slog.Int("candidates", len(candidates)),
		slog.Int("selected", len(selected)))

	return selected, nil
}

// SelectBackendsWith runs a one-shot selection with the given policy
// type instead of the app's configured one. The ephemeral instance uses
// the persisted limit and never touches the cached runtime, so an
// override cannot disturb the configured rotation.
func (s *Scheduler) SelectBackendsWith(ctx context.Context, appID string, t policy.Type) ([]*backend.Backend, error) {
	if !policy.Known(t) {
		return nil, &policy.Error{Type: t}
	}

	candidates, err := s.store.ListAppBackends(ctx, appID)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []*backend.Backend{}, nil
	}

	cfg, err := s.effectivePolicy(ctx, appID)
	if err != nil {
		return nil, err
	}

	pol, err := policy.New(t, cfg.Limit)
	if err != nil {
		return nil, err
	}

	selected := pol.SelectBackends(candidates)
	if selected == nil {
		selected = []*backend.Backend{}
	}

	return selected, nil
}

// ListBackends returns every backend in the registry.
func (s *Scheduler) ListBackends(ctx context.Context) ([]*backend.Backend, error) {
	return s.store.ListBackends(ctx)
}

// ListAppBackends returns every backend of one app id, unfiltered.
func (s *Scheduler) ListAppBackends(ctx context.Context, appID string) ([]*backend.Backend, error) {
	return s.store.ListAppBackends(ctx, appID)
}

// RemoveBackend deletes a backend from the registry.
func (s *Scheduler) RemoveBackend(ctx context.Context, appID, backendID string) (*backend.Backend, error) {
	return s.store.RemoveBackend(ctx, appID, backendID)
}

// UpdateBackendState sets the explicit active/down state of a backend.
func (s *Scheduler) UpdateBackendState(ctx context.Context, appID, backendID string, state backend.State) (*backend.Backend, error) {
	return s.store.UpdateBackendState(ctx, appID, backendID, state)
}

// UpdateBackendWeight sets the selection weight of a backend.
func (s *Scheduler) UpdateBackendWeight(ctx context.Context, appID, backendID string, weight int) (*backend.Backend, error) {
	return s.store.UpdateBackendWeight(ctx, appID, backendID, weight)
}

// UpdateBackendApp reassigns a backend to another app id.
func (s *Scheduler) UpdateBackendApp(ctx context.Context, appID, backendID, newAppID string) (*backend.Backend, error) {
	return s.store.UpdateBackendApp(ctx, appID, backendID, newAppID)
}

// GetPolicy returns the effective policy configuration of an app id,
// creating the default configuration on first read.
func (s *Scheduler) GetPolicy(ctx context.Context, appID string) (policy.Config, error) {
	return s.effectivePolicy(ctx, appID)
}

// UpdatePolicy validates and persists a new policy configuration for an
// app id. The cached runtime is not touched here; the next selection
// call reconciles against the stored configuration.
func (s *Scheduler) UpdatePolicy(ctx context.Context, appID string, cfg policy.Config) (policy.Config, error) {
	if !policy.Known(cfg.Type) {
		return policy.Config{}, &policy.Error{Type: cfg.Type}
	}
	if cfg.Limit < 1 {
		return policy.Config{}, &store.ValidationError{Field: "limit", Reason: "must be at least 1"}
	}

	stored, err := s.store.UpsertPolicy(ctx, appID, cfg)
	if err != nil {
		return policy.Config{}, err
	}

	s.logger.Info("policy updated",
		slog.String("app_id", appID),
		slog.String("policy_type", string(stored.Type)),
		slog.Int("limit", stored.Limit))

	return stored, nil
}

// SupportedPolicies returns the static descriptors of the selection
// algorithms. No store access.
func (s *Scheduler) SupportedPolicies() []policy.Descriptor {
	return policy.Descriptors()
}
