// Package api exposes the scheduler facade over HTTP. Every endpoint
// answers with the {code, msg, data} envelope; typed registry errors map
// to code 1 with their own message.
package api
