// Package utils provides common helpers shared across packages: loose type
// conversion for request payloads and the structural JSON comparison used for
// conflict detection and change checks.
package utils
