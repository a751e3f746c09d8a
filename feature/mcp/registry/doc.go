// Package registry stores mcp_server_registry.json, the canonical superset of
// every server definition the manager has seen.
//
// Names only ever enter the registry. Reads annotate every entry as disabled
// and leave it to the caller to flip the ones present in an active set.
package registry
