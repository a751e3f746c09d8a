// Package loader registers features and mounts their routes.
//
// A feature is a self-contained module exposing Name, IsEnabled and Load. The
// Manager keeps registration order, refuses two features with the same name and
// skips disabled ones. cmd/start.go registers the 'mcp' configuration feature and
// the 'presets' feature; neither knows about the other.
package loader
