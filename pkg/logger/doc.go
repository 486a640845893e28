// Package logger configures the process-wide structured logger.
package logger
