// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package tree implements the tree merger (C4), the root action
// assembler (C5), and the bottom-up query walk (C6) of spec.md §4.4-4.6:
// the array-based binary tree that composes per-attribute leaf
// registries into a single root action table.
package tree

import (
	"sort"

	"github.com/coreswitch/pktclass/internal/registry"
	"github.com/coreswitch/pktclass/internal/valuetable"
)

// NonTerminateBit is bit 15 of an action word (spec.md §3): clear means
// the rule terminates matching, set means collection continues.
const NonTerminateBit = 1 << 15

// NoConditionalRule marks an assembled action-list entry that carries no
// runtime AND-check (every rule except ones with a TCP flag constraint).
const NoConditionalRule = ^uint32(0)

// IsTerminal reports whether an action word ends match collection.
func IsTerminal(action uint32) bool {
	return action&NonTerminateBit == 0
}

// membership inverts a registry into, for every rule id, the sorted
// list of classifiers that rule belongs to. Used by both C4 and C5 to
// drive the rule-indexed generation walk without materialising the full
// |L| x |R| Cartesian product.
func membership(r *registry.Registry, numRules int) [][]uint32 {
	out := make([][]uint32, numRules)
	for cls := uint32(0); cls < r.Capacity(); cls++ {
		for _, ruleID := range r.Range(cls) {
			if int(ruleID) >= numRules {
				continue
			}
			out[ruleID] = append(out[ruleID], cls)
		}
	}
	return out
}

// MergeAndCollect is the C4 tree merger: it composes a left and a right
// child registry into a value table plus a parent registry, one entry
// per distinct rule-id intersection (spec.md §4.4).
//
// Equivalence is realised with one generation per rule id, processed in
// ascending order: generation g touches every (l, r) such that rule g
// belongs to both L's classifier l and R's classifier r. Under that
// convention a cell's touched-generation set is exactly
// L.range(l) ∩ R.range(r), so valuetable's generic generation-set
// compaction realises rule-id-intersection equivalence directly (see
// DESIGN.md's resolution of the generation-scheme open question).
func MergeAndCollect(left, right *registry.Registry, numRules int) (*valuetable.Table, *registry.Registry, error) {
	tbl, err := valuetable.Init(int(left.Capacity()), int(right.Capacity()))
	if err != nil {
		return nil, nil, err
	}

	lMembership := membership(left, numRules)
	rMembership := membership(right, numRules)

	for ruleID := 0; ruleID < numRules; ruleID++ {
		tbl.NewGen()
		for _, l := range lMembership[ruleID] {
			for _, r := range rMembership[ruleID] {
				tbl.Touch(int(l), int(r))
			}
		}
	}

	n := tbl.Compact()
	parent := registry.New()
	for id := 0; id < n; id++ {
		parent.StartRange()
		parent.SetRange(uint32(id), tbl.Canonical(uint32(id)))
	}
	return tbl, parent, nil
}

type cellKey struct{ l, r uint32 }

// AssembleActions is the C5 merge-and-set operator performed at the
// root: instead of rule-id lists, cells accumulate ordered,
// terminal-truncated action lists, and equivalence between cells is
// defined by equal action lists rather than equal rule-id intersections
// (spec.md §4.5). Once a cell's list has gone terminal, later
// generations skip it — no further rule can extend a closed list.
//
// conditional marks, by rule id, rules whose terminal status is subject
// to an additional runtime AND-check (the protocol attribute's TCP flag
// masks, spec.md §4.3) that can't be evaluated at build time: such a
// rule's entry never closes its cell, since whether it actually ends
// match collection depends on the packet being queried. The returned
// rule-id registry parallels the action registry one-for-one, recording
// which rule produced each assembled action (NoConditionalRule where no
// runtime check applies), so the query engine can re-check flag-gated
// entries per packet.
func AssembleActions(left, right *registry.Registry, actions []uint32, numRules int, conditional []bool) (*valuetable.Table, *registry.Registry, *registry.Registry, error) {
	lMembership := membership(left, numRules)
	rMembership := membership(right, numRules)

	lists := map[cellKey][]uint32{}
	ruleLists := map[cellKey][]uint32{}
	closed := map[cellKey]bool{}

	for ruleID := 0; ruleID < numRules; ruleID++ {
		cond := conditional != nil && conditional[ruleID]
		for _, l := range lMembership[ruleID] {
			for _, r := range rMembership[ruleID] {
				key := cellKey{l, r}
				if closed[key] {
					continue
				}
				lists[key] = append(lists[key], actions[ruleID])
				if cond {
					ruleLists[key] = append(ruleLists[key], uint32(ruleID))
				} else {
					ruleLists[key] = append(ruleLists[key], NoConditionalRule)
				}
				if IsTerminal(actions[ruleID]) && !cond {
					closed[key] = true
				}
			}
		}
	}

	order := make([]cellKey, 0, len(lists))
	for k := range lists {
		order = append(order, k)
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].l != order[j].l {
			return order[i].l < order[j].l
		}
		return order[i].r < order[j].r
	})

	parent := registry.New()
	parent.StartRange() // id 0: empty action list, for untouched cells
	ruleParent := registry.New()
	ruleParent.StartRange()

	seen := map[string]uint32{}
	next := uint32(1)
	final := make([]uint32, int(left.Capacity())*int(right.Capacity()))

	for _, k := range order {
		list := lists[k]
		ruleList := ruleLists[k]
		sig := actionSignature(list) + conditionalSignature(ruleList)
		id, ok := seen[sig]
		if !ok {
			id = next
			seen[sig] = id
			next++
			parent.StartRange()
			parent.SetRange(id, list)
			ruleParent.StartRange()
			ruleParent.SetRange(id, ruleList)
		}
		final[int(k.l)*int(right.Capacity())+int(k.r)] = id
	}

	tbl := valuetable.FromAssignment(int(left.Capacity()), int(right.Capacity()), final)
	return tbl, parent, ruleParent, nil
}

func actionSignature(actions []uint32) string {
	b := make([]byte, 0, len(actions)*5)
	for _, a := range actions {
		b = append(b, byte(a>>24), byte(a>>16), byte(a>>8), byte(a), '|')
	}
	return string(b)
}

// conditionalSignature distinguishes cells that share an action sequence
// but depend on different rules' runtime flag checks; entries with no
// runtime check never affect it.
func conditionalSignature(ruleIDs []uint32) string {
	b := make([]byte, 0, len(ruleIDs)*5)
	for _, r := range ruleIDs {
		if r == NoConditionalRule {
			b = append(b, '-', '|')
			continue
		}
		b = append(b, byte(r>>24), byte(r>>16), byte(r>>8), byte(r), '|')
	}
	return string(b)
}
