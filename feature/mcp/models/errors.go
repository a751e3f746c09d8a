package models

import "errors"

var (
	// ErrValidation is returned when a request is rejected before any mutation.
	ErrValidation = errors.New("validation failed")
	// ErrClientNotFound is returned for an unknown client id.
	ErrClientNotFound = errors.New("client not found")
	// ErrGroupNotFound is returned for an unknown sync group id.
	ErrGroupNotFound = errors.New("sync group not found")
	// ErrAmbiguousTarget is returned when a save names neither a client nor a group.
	ErrAmbiguousTarget = errors.New("save target is ambiguous: select a client or a sync group")
	// ErrBuiltInClient is returned when deleting a built-in client.
	ErrBuiltInClient = errors.New("built-in clients cannot be deleted")
)
