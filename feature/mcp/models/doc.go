// Package models defines the data shared by the MCP configuration packages:
// server definitions, config files, annotated views, clients, sync groups and
// the settings document, plus the error values surfaced to callers.
package models
