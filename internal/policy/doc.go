// Package policy defines the backend selection policy interface and
// implements the supported algorithms:
//
//   - Round Robin: rotating cursor over the active backends
//   - Weighted: descending weight order, stable for equal weights
//   - All Active: every active backend in registration order
//   - Random: uniformly random permutation
//
// All policies filter out down backends and cap their result at the
// configured limit.
package policy
