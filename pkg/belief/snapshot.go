package belief

import (
	"cmp"
	"slices"
)

// MaxPerType caps how many values of one type reach a snapshot.
const MaxPerType = 10

// Snapshot returns the beliefs at or above minConfidence, highest confidence
// first, ties ordered by type then value. The result is a copy.
func (s Set) Snapshot(minConfidence float64) []Belief {
	out := make([]Belief, 0, len(s))
	for _, b := range s {
		if b.Confidence >= minConfidence {
			out = append(out, b)
		}
	}
	slices.SortFunc(out, func(a, b Belief) int {
		if c := cmp.Compare(b.Confidence, a.Confidence); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Type, b.Type); c != 0 {
			return c
		}
		return cmp.Compare(a.Value, b.Value)
	})

	perType := make(map[Type]int)
	capped := out[:0]
	for _, b := range out {
		if perType[b.Type] >= MaxPerType {
			continue
		}
		perType[b.Type]++
		capped = append(capped, b)
	}
	return capped
}

// Snapshot returns the self-beliefs at or above minConfidence with the same
// ordering and per-type cap as Set.Snapshot.
func (s SelfSet) Snapshot(minConfidence float64) []SelfBelief {
	out := make([]SelfBelief, 0, len(s))
	for _, b := range s {
		if b.Confidence >= minConfidence {
			out = append(out, b)
		}
	}
	slices.SortFunc(out, func(a, b SelfBelief) int {
		if c := cmp.Compare(b.Confidence, a.Confidence); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Type, b.Type); c != 0 {
			return c
		}
		return cmp.Compare(a.Value, b.Value)
	})

	perType := make(map[string]int)
	capped := out[:0]
	for _, b := range out {
		if perType[b.Type] >= MaxPerType {
			continue
		}
		perType[b.Type]++
		capped = append(capped, b)
	}
	return capped
}
