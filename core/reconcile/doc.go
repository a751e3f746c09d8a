// Package reconcile provides the generic multi-source reconciliation used to
// compare what several independent clients report for the same entities.
//
// The package knows nothing about files or server definitions. Callers wrap each
// participant in a Source (an id plus its items keyed by name) and provide an
// equality function.
//
// # Operations
//
//   - Aggregate: union of keys across sources, with the ordered, deduplicated list
//     of sources per key and a conflict flag. Comparison is always against the first
//     recorded value for the key.
//   - CompareToFirst: whole-set comparison of the first source with every other
//     source, producing one Difference per disagreeing pair.
//   - Union: plain key union over any number of maps.
//
// # Usage Example
//
//	results := reconcile.Aggregate(sources, func(a, b models.ServerDefinition) bool {
//	    return utils.StructuralEqual(a, b, utils.TransientKeys...)
//	})
//
// See feature/mcp/engine for the engine built on top of it.
package reconcile
