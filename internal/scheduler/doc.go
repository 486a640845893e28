// Package scheduler is the facade over the registry store and the policy
// engine. It owns the per-app policy runtime cache, including the
// round-robin rotation cursor, and keeps it synchronized with the
// persisted policy configuration.
package scheduler
