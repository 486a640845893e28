// Package backend defines the registered worker instance record and its
// explicit active/down state.
package backend
