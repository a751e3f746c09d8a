package reconcile

import "sort"

// Aggregate merges the items of all sources by key.
// The first source reporting a key fixes the reference value; every later
// source is compared against that reference only, so a conflict is flagged
// as soon as any later value differs from the first recorded one.
// Results are sorted by key for deterministic output.
func Aggregate[T any](sources []Source[T], equal EqualFunc[T]) []Result[T] {
	index := make(map[string]*Result[T])
	order := make([]string, 0)

	for _, src := range sources {
		for _, key := range sortedKeys(src.Items) {
			item := src.Items[key]

			res, seen := index[key]
			if !seen {
				index[key] = &Result[T]{
					Key:     key,
					Value:   item,
					Sources: []string{src.ID},
				}
				order = append(order, key)
				continue
			}

			if contains(res.Sources, src.ID) {
				continue
			}
			if !equal(res.Value, item) {
				res.Conflicts = true
			}
			res.Sources = append(res.Sources, src.ID)
		}
	}

	sort.Strings(order)
	results := make([]Result[T], 0, len(order))
	for _, key := range order {
		results = append(results, *index[key])
	}
	return results
}

// CompareToFirst compares the complete item set of the first source with
// each later source and returns one Difference per disagreeing pair.
// Fewer than two sources never differ.
func CompareToFirst[T any](sources []Source[T], equal func(a, b map[string]T) bool, diff func(a, b map[string]T) string) []Difference {
	if len(sources) < 2 {
		return nil
	}

	ref := sources[0]
	var out []Difference
	for _, other := range sources[1:] {
		if equal(ref.Items, other.Items) {
			continue
		}
		d := Difference{A: ref.ID, B: other.ID}
		if diff != nil {
			d.Diff = diff(ref.Items, other.Items)
		}
		out = append(out, d)
	}
	return out
}

// Union returns every key present in at least one of the given sets.
func Union[T any](sets ...map[string]T) map[string]struct{} {
	union := make(map[string]struct{})
	for _, set := range sets {
		for key := range set {
			union[key] = struct{}{}
		}
	}
	return union
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
