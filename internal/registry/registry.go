// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package registry implements the Value Registry (spec.md §4.1): an
// append-only, per-vertex sequence of ranges, where a range's index is
// its classifier id and its contents are the ordered list of rule ids
// that belong to that classifier.
package registry

// Registry is a lazy sequence of ranges. Range index == classifier id.
// Ranges are only ever added, never removed; SetRange and CollectInto
// can still change an existing range's contents while the registry is
// being built, after which it is treated as frozen.
type Registry struct {
	ranges [][]uint32
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{}
}

// StartRange begins a new range and returns its classifier id, which is
// always the previous Capacity().
func (r *Registry) StartRange() uint32 {
	id := uint32(len(r.ranges))
	r.ranges = append(r.ranges, nil)
	return id
}

// Collect appends ruleID to the range currently under construction (the
// most recently started range). Callers must pass rule ids in
// non-decreasing order within a range; duplicates are the caller's
// responsibility to avoid.
func (r *Registry) Collect(ruleID uint32) {
	last := len(r.ranges) - 1
	r.ranges[last] = append(r.ranges[last], ruleID)
}

// CollectInto appends ruleID to a specific range by classifier id,
// rather than the most recently started one. Used by builders (C3) that
// interleave construction of multiple ranges, such as the LPM-backed net
// attribute builders.
func (r *Registry) CollectInto(classifier uint32, ruleID uint32) {
	r.ranges[classifier] = append(r.ranges[classifier], ruleID)
}

// SetRange replaces the contents of an existing range wholesale. Used by
// the merger (C4/C5), which computes a range's final contents before it
// has a home to append into incrementally.
func (r *Registry) SetRange(classifier uint32, ruleIDs []uint32) {
	r.ranges[classifier] = ruleIDs
}

// Capacity returns the number of ranges (classifiers) in the registry.
func (r *Registry) Capacity() uint32 {
	return uint32(len(r.ranges))
}

// Range returns the ordered rule-id slice for classifier id i.
func (r *Registry) Range(i uint32) []uint32 {
	return r.ranges[i]
}

// Free releases the registry's backing storage: the registry is backed
// by Go slices, so Free drops its references and leaves reclaiming the
// memory to the garbage collector.
func (r *Registry) Free() {
	r.ranges = nil
}
