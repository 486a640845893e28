// Package config loads and validates the scheduler configuration from
// file, environment variables and defaults.
package config
