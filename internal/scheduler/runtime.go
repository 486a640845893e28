package scheduler

import (
	"sync"

	"github.com/angeloszaimis/backend-scheduler/internal/policy"
)

// appRuntime is the live policy instance of one app id. Its mutex
// serializes selection for that app id only; holding it across the
// reconcile-and-select sequence is what keeps the round-robin cursor
// free of read-modify-write races.
type appRuntime struct {
	mutex  sync.Mutex
	policy policy.Policy
}

// reconcile brings the live instance in line with the persisted
// configuration. A type change rebuilds the instance (the rotation
// cursor resets, which is accepted); a limit change is applied in place
// so the cursor survives. Callers hold the entry mutex.
func (r *appRuntime) reconcile(cfg policy.Config) error {
	if r.policy == nil || r.policy.Type() != cfg.Type {
		pol, err := policy.New(cfg.Type, cfg.Limit)
		if err != nil {
			return err
		}
		r.policy = pol
		return nil
	}

	if r.policy.Limit() != cfg.Limit {
		r.policy.SetLimit(cfg.Limit)
	}

	return nil
}

// runtimeCache maps app ids to their live policy runtime. The cache
// mutex only guards map membership; per-app work happens under the
// entry mutex, so app ids never block each other.
type runtimeCache struct {
	mutex   sync.Mutex
	entries map[string]*appRuntime
}

func newRuntimeCache() *runtimeCache {
	return &runtimeCache{entries: make(map[string]*appRuntime)}
}

// entry returns the runtime of one app id, creating an empty one on
// first use.
func (c *runtimeCache) entry(appID string) *appRuntime {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	rt, ok := c.entries[appID]
	if !ok {
		rt = &appRuntime{}
		c.entries[appID] = rt
	}

	return rt
}
