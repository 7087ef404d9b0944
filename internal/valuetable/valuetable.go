// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package valuetable implements the Value Table compactor (spec.md
// §4.2): a 2-D function (left classifier, right classifier) -> parent
// classifier, built by recording which generation touched which cell and
// then collapsing cells with identical generation histories to a single
// dense id.
package valuetable

import (
	"fmt"
	"strings"

	cerrors "github.com/coreswitch/pktclass/internal/errors"
)

// Table is a generation-stamped 2-D value table over [0, height) x
// [0, width). Id 0 is reserved for cells never touched by any
// generation (the "no classifier" sentinel, spec.md §4.2).
type Table struct {
	height, width int
	gen           int
	touched       []map[int]struct{} // touched[l*width+r] = set of generations that touched (l, r)
	final         []uint32           // final[l*width+r], valid only after Compact
	canon         [][]uint32         // canon[id] = sorted generation set that produced id, valid only after Compact
	compacted     bool
}

// Init creates a Table of the given dimensions. Height and width are
// 32-bit capacities (spec.md §4.2); a product above 2^31-1 cells is
// rejected as KindCapacityOverflow.
func Init(height, width int) (*Table, error) {
	if height < 0 || width < 0 {
		return nil, cerrors.New(cerrors.KindCapacityOverflow, "negative value table dimension")
	}
	if height > 0 && width > (1<<31-1)/height {
		return nil, cerrors.Errorf(cerrors.KindCapacityOverflow, "value table dimensions %dx%d overflow", height, width)
	}

	n := height * width
	return &Table{
		height:  height,
		width:   width,
		gen:     -1,
		touched: make([]map[int]struct{}, n),
	}, nil
}

// Height returns the table's left-child capacity.
func (t *Table) Height() int { return t.height }

// Width returns the table's right-child capacity.
func (t *Table) Width() int { return t.width }

// NewGen bumps the current generation counter. The merger (C4) drives
// one generation per rule id, processed in ascending order: generation g
// touches every (l, r) such that rule g belongs to both the left child's
// classifier l and the right child's classifier r. Under that convention
// a cell's touched-generation set is exactly the rule-id intersection for
// that (l, r) pair, which is what makes Canonical a direct readback
// rather than a re-derivation.
func (t *Table) NewGen() int {
	t.gen++
	return t.gen
}

func (t *Table) index(l, r int) int { return l*t.width + r }

// Touch marks cell (l, r) as touched in the current generation. It is
// idempotent within a generation.
func (t *Table) Touch(l, r int) {
	idx := t.index(l, r)
	if t.touched[idx] == nil {
		t.touched[idx] = make(map[int]struct{}, 1)
	}
	t.touched[idx][t.gen] = struct{}{}
}

// IsTouchedThisGen reports whether (l, r) was already touched in the
// current generation.
func (t *Table) IsTouchedThisGen(l, r int) bool {
	idx := t.index(l, r)
	if t.touched[idx] == nil {
		return false
	}
	_, ok := t.touched[idx][t.gen]
	return ok
}

// signature renders a cell's generation set as a sorted, comparable
// string key. See DESIGN.md for why a stdlib map key, rather than a
// pack-sourced hashing library, is the faithful choice here.
func signature(gens map[int]struct{}) string {
	if len(gens) == 0 {
		return ""
	}
	ids := make([]int, 0, len(gens))
	for g := range gens {
		ids = append(ids, g)
	}
	sortInts(ids)

	var b strings.Builder
	for i, g := range ids {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%d", g)
	}
	return b.String()
}

func sortInts(xs []int) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] > xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}

// Compact assigns each distinct generation-set equivalence class a fresh
// dense id in [0, K), with id 0 reserved for untouched cells. Assignment
// is deterministic: cells are walked in row-major (l, r) order and a new
// id is minted the first time a signature is seen, so two Compact runs
// over the same touch history always agree (see DESIGN.md, Open
// Question 1).
func (t *Table) Compact() int {
	t.final = make([]uint32, len(t.touched))
	seen := make(map[string]uint32, len(t.touched))
	t.canon = make([][]uint32, 1, len(t.touched)+1)
	t.canon[0] = nil // id 0: the untouched sentinel has no rule list
	next := uint32(1)

	for l := 0; l < t.height; l++ {
		for r := 0; r < t.width; r++ {
			idx := t.index(l, r)
			gens := t.touched[idx]
			sig := signature(gens)
			if sig == "" {
				t.final[idx] = 0
				continue
			}
			id, ok := seen[sig]
			if !ok {
				id = next
				seen[sig] = id
				next++
				t.canon = append(t.canon, sortedGens(gens))
			}
			t.final[idx] = id
		}
	}
	t.compacted = true
	return int(next)
}

func sortedGens(gens map[int]struct{}) []uint32 {
	ids := make([]uint32, 0, len(gens))
	for g := range gens {
		ids = append(ids, uint32(g))
	}
	sortUint32s(ids)
	return ids
}

func sortUint32s(xs []uint32) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] > xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}

// FromAssignment builds an already-compacted table from a caller-
// supplied (l, r) -> id grid. The action assembler (C5) uses this: its
// equivalence key is the truncated action list, not the rule-id
// generation set that Compact collapses on, so it computes its own
// assignment and hands the finished grid back here to get a Table
// shaped the same way as one produced by Compact.
func FromAssignment(height, width int, final []uint32) *Table {
	return &Table{height: height, width: width, final: final, compacted: true}
}

// Get returns the compacted parent classifier id for (l, r). Compact
// (or FromAssignment) must have been called first.
func (t *Table) Get(l, r int) uint32 {
	return t.final[t.index(l, r)]
}

// Canonical returns the sorted generation set (conventionally, the rule
// id intersection) that produced the given compacted id. It returns nil
// for id 0, the untouched sentinel.
func (t *Table) Canonical(id uint32) []uint32 {
	return t.canon[id]
}

// NumClasses returns the number of distinct ids minted by Compact,
// including the sentinel.
func (t *Table) NumClasses() int {
	return len(t.canon)
}

// Free releases the table's backing storage.
func (t *Table) Free() {
	t.touched = nil
	t.final = nil
	t.canon = nil
}
