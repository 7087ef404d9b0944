// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package tree

// Query is the C6 query engine: given the classifier id each leaf
// attribute produced for a packet (in signature order), propagate
// bottom-up through the inner vertex tables and return the root's
// compacted action-list id (spec.md §4.6).
func (t *Tree) Query(leafIDs []uint32) uint32 {
	if t.n == 1 {
		return t.tables[0].Get(0, int(leafIDs[0]))
	}

	slots := make([]uint32, 2*t.n)
	for i, id := range leafIDs {
		slots[t.n+i] = id
	}
	for v := t.n - 1; v >= 1; v-- {
		l, r := slots[2*v], slots[2*v+1]
		slots[v] = t.tables[v].Get(int(l), int(r))
	}
	return slots[1]
}
