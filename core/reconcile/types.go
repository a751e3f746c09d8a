package reconcile

// Source is one participant in a reconciliation: an identifier and the
// entries it reports, keyed by entity name.
type Source[T any] struct {
	// ID identifies the source (e.g. a client id).
	ID string

	// Items holds the entries reported by this source.
	Items map[string]T
}

// Result is the reconciled view of one key across all sources.
type Result[T any] struct {
	// Key is the entity name.
	Key string

	// Value is the entry recorded by the first source reporting the key.
	Value T

	// Sources lists, in encounter order and without duplicates, every source
	// reporting the key.
	Sources []string

	// Conflicts is true when a later source reported a value that differs
	// from Value.
	Conflicts bool
}

// Difference describes two sources whose complete item sets disagree.
type Difference struct {
	// A is the reference source (always the first one compared).
	A string `json:"a"`

	// B is the source that differs from A.
	B string `json:"b"`

	// Diff is a human readable description of the disagreement.
	Diff string `json:"diff,omitempty"`
}

// EqualFunc compares two entries for structural equality.
type EqualFunc[T any] func(a, b T) bool
