package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angeloszaimis/backend-scheduler/internal/backend"
	"github.com/angeloszaimis/backend-scheduler/internal/policy"
)

const (
	dialTimeout  = time.Second
	readTimeout  = time.Second
	writeTimeout = time.Second
)

// Options configures the Redis connection for the registry.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore implements Store on top of Redis.
//
// Layout:
//
//	scheduler:backend:<id>   JSON blob of one backend record
//	scheduler:app:<app_id>   list of backend ids in registration order
//	scheduler:backends       list of all backend ids in registration order
//	scheduler:instances      hash instance_id -> backend id (uniqueness index)
//	scheduler:policy:<app_id> JSON blob of the policy configuration
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
}

// Open connects to Redis and verifies the connection with a ping.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}

	return NewRedisStore(client, logger), nil
}

// NewRedisStore wraps an existing client. Tests use this with miniredis.
func NewRedisStore(client *redis.Client, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.Default()
	}

	return &RedisStore{client: client, logger: logger}
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func backendKey(id string) string   { return "scheduler:backend:" + id }
func appKey(appID string) string    { return "scheduler:app:" + appID }
func policyKey(appID string) string { return "scheduler:policy:" + appID }

const (
	allBackendsKey   = "scheduler:backends"
	instanceIndexKey = "scheduler:instances"
)

func (s *RedisStore) AddBackend(ctx context.Context, b *backend.Backend) (*backend.Backend, error) {
	// HSETNX is the uniqueness constraint: exactly one of two concurrent
	// registrations with the same instance id wins the field.
	reserved, err := s.client.HSetNX(ctx, instanceIndexKey, b.InstanceID, b.ID).Result()
	if err != nil {
		return nil, fmt.Errorf("reserve instance id: %w", err)
	}
	if !reserved {
		return nil, &ConflictError{InstanceID: b.InstanceID}
	}

	payload, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encode backend: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, backendKey(b.ID), payload, 0)
		pipe.RPush(ctx, appKey(b.AppID), b.ID)
		pipe.RPush(ctx, allBackendsKey, b.ID)
		return nil
	})
	if err != nil {
		// Release the reservation so the instance id is not leaked.
		s.client.HDel(ctx, instanceIndexKey, b.InstanceID)
		return nil, fmt.Errorf("persist backend: %w", err)
	}

	s.logger.Debug("backend persisted",
		slog.String("backend_id", b.ID),
		slog.String("app_id", b.AppID),
		slog.String("instance_id", b.InstanceID))

	return b, nil
}

func (s *RedisStore) ListBackends(ctx context.Context) ([]*backend.Backend, error) {
	return s.listByIndex(ctx, allBackendsKey)
}

func (s *RedisStore) ListAppBackends(ctx context.Context, appID string) ([]*backend.Backend, error) {
	return s.listByIndex(ctx, appKey(appID))
}

func (s *RedisStore) listByIndex(ctx context.Context, indexKey string) ([]*backend.Backend, error) {
	ids, err := s.client.LRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list backend ids: %w", err)
	}

	backends := make([]*backend.Backend, 0, len(ids))
	for _, id := range ids {
		b, err := s.getBackend(ctx, id)
		if err != nil {
			var notFound *NotFoundError
			if errors.As(err, &notFound) {
				// Index entry without a record; skip rather than fail
				// the whole listing.
				s.logger.Warn("dangling backend index entry", slog.String("backend_id", id))
				continue
			}
			return nil, err
		}
		backends = append(backends, b)
	}

	return backends, nil
}

func (s *RedisStore) getBackend(ctx context.Context, id string) (*backend.Backend, error) {
	payload, err := s.client.Get(ctx, backendKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, &NotFoundError{Resource: "backend", Key: id}
	}
	if err != nil {
		return nil, fmt.Errorf("load backend %s: %w", id, err)
	}

	var b backend.Backend
	if err := json.Unmarshal([]byte(payload), &b); err != nil {
		return nil, fmt.Errorf("decode backend %s: %w", id, err)
	}

	return &b, nil
}

// getAppBackend loads a backend and checks it belongs to the given app id.
// A record under another app id is reported as not found, matching the
// two-key contract of the mutating operations.
func (s *RedisStore) getAppBackend(ctx context.Context, appID, backendID string) (*backend.Backend, error) {
	b, err := s.getBackend(ctx, backendID)
	if err != nil {
		return nil, err
	}
	if b.AppID != appID {
		return nil, &NotFoundError{Resource: "backend", Key: backendID}
	}

	return b, nil
}

func (s *RedisStore) RemoveBackend(ctx context.Context, appID, backendID string) (*backend.Backend, error) {
	b, err := s.getAppBackend(ctx, appID, backendID)
	if err != nil {
		return nil, err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, backendKey(b.ID))
		pipe.LRem(ctx, appKey(b.AppID), 0, b.ID)
		pipe.LRem(ctx, allBackendsKey, 0, b.ID)
		pipe.HDel(ctx, instanceIndexKey, b.InstanceID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("remove backend: %w", err)
	}

	s.logger.Debug("backend removed",
		slog.String("backend_id", b.ID),
		slog.String("app_id", b.AppID))

	return b, nil
}

func (s *RedisStore) UpdateBackendState(ctx context.Context, appID, backendID string, state backend.State) (*backend.Backend, error) {
	if !state.Valid() {
		return nil, &ValidationError{Field: "state", Reason: "must be either 'active' or 'down'"}
	}

	b, err := s.getAppBackend(ctx, appID, backendID)
	if err != nil {
		return nil, err
	}

	b.State = state
	if err := s.putBackend(ctx, b); err != nil {
		return nil, err
	}

	return b, nil
}

func (s *RedisStore) UpdateBackendWeight(ctx context.Context, appID, backendID string, weight int) (*backend.Backend, error) {
	if weight < 1 {
		return nil, &ValidationError{Field: "weight", Reason: "must be at least 1"}
	}

	b, err := s.getAppBackend(ctx, appID, backendID)
	if err != nil {
		return nil, err
	}

	b.Weight = weight
	if err := s.putBackend(ctx, b); err != nil {
		return nil, err
	}

	return b, nil
}

func (s *RedisStore) UpdateBackendApp(ctx context.Context, appID, backendID, newAppID string) (*backend.Backend, error) {
	if newAppID == "" {
		return nil, &ValidationError{Field: "app_id", Reason: "cannot be empty"}
	}

	b, err := s.getAppBackend(ctx, appID, backendID)
	if err != nil {
		return nil, err
	}

	oldAppID := b.AppID
	b.AppID = newAppID

	payload, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encode backend: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, backendKey(b.ID), payload, 0)
		pipe.LRem(ctx, appKey(oldAppID), 0, b.ID)
		pipe.RPush(ctx, appKey(newAppID), b.ID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reassign backend: %w", err)
	}

	return b, nil
}

// putBackend overwrites a single record blob. A single SET is atomic, so
// the record is never observed half-updated.
func (s *RedisStore) putBackend(ctx context.Context, b *backend.Backend) error {
	payload, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode backend: %w", err)
	}

	if err := s.client.Set(ctx, backendKey(b.ID), payload, 0).Err(); err != nil {
		return fmt.Errorf("store backend: %w", err)
	}

	return nil
}

func (s *RedisStore) GetPolicy(ctx context.Context, appID string) (policy.Config, error) {
	payload, err := s.client.Get(ctx, policyKey(appID)).Result()
	if errors.Is(err, redis.Nil) {
		return policy.Config{}, &NotFoundError{Resource: "policy", Key: appID}
	}
	if err != nil {
		return policy.Config{}, fmt.Errorf("load policy for %s: %w", appID, err)
	}

	var cfg policy.Config
	if err := json.Unmarshal([]byte(payload), &cfg); err != nil {
		return policy.Config{}, fmt.Errorf("decode policy for %s: %w", appID, err)
	}

	return cfg, nil
}

func (s *RedisStore) UpsertPolicy(ctx context.Context, appID string, cfg policy.Config) (policy.Config, error) {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return policy.Config{}, fmt.Errorf("encode policy: %w", err)
	}

	if err := s.client.Set(ctx, policyKey(appID), payload, 0).Err(); err != nil {
		return policy.Config{}, fmt.Errorf("store policy for %s: %w", appID, err)
	}

	s.logger.Debug("policy stored",
		slog.String("app_id", appID),
		slog.String("policy_type", string(cfg.Type)),
		slog.Int("limit", cfg.Limit))

	return cfg, nil
}
