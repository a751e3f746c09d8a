// Package presets stores named snapshots of server sets.
//
// Presets are a flat name to JSON object table with no reconciliation logic.
// They live in presets.json by default, or in the mcp_presets table when a
// database driver is configured.
package presets
