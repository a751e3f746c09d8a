// Package server holds the HTTP server configuration.
//
// While the start command handles the server startup, this package defines the
// configuration structure for the listen address and the optional API key.
//
// # Usage
//
// This package is embedded by core/config and consumed by cmd/start.go.
package server
