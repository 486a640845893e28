// Package store persists backend and policy records in Redis. It keeps a
// registration-ordered list per app id, a registry-wide instance index
// enforcing identity uniqueness, and one policy configuration per app id.
package store
