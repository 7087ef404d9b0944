// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package tree

import (
	cerrors "github.com/coreswitch/pktclass/internal/errors"
	"github.com/coreswitch/pktclass/internal/registry"
	"github.com/coreswitch/pktclass/internal/valuetable"
)

// Tree is the compiled array-based binary tree of spec.md §3: for
// n > 1, inner vertices occupy [1, n) with vertex 1 as root and leaves
// at [n, 2n); for n == 1, vertex 0 is the sole (degenerate) root merged
// against a synthetic dummy child.
type Tree struct {
	n      int
	tables map[int]*valuetable.Table
	root   *registry.Registry

	// rootConditional parallels root one-for-one: for each assembled
	// action entry, the rule id it came from if that rule carries a
	// runtime flag AND-check, else NoConditionalRule.
	rootConditional *registry.Registry
}

// NumAttrs returns the signature length the tree was built for.
func (t *Tree) NumAttrs() int { return t.n }

// RootActions returns the action-word slice for a compacted root id.
func (t *Tree) RootActions(id uint32) []uint32 { return t.root.Range(id) }

// RootConditionalRuleIDs returns the rule-id slice parallel to
// RootActions(id): NoConditionalRule at a position means that action
// needs no further runtime check.
func (t *Tree) RootConditionalRuleIDs(id uint32) []uint32 { return t.rootConditional.Range(id) }

// RootClassCount returns the number of distinct compacted action-list
// classifiers at the root, including the empty-list sentinel.
func (t *Tree) RootClassCount() int { return int(t.root.Capacity()) }

// Build composes per-attribute leaf registries (produced by the C3
// builders, one per signature position) and the per-rule action words
// into the full tree, bottom-up (spec.md §4.4-§4.5). conditional marks,
// by rule id, rules whose terminal status additionally depends on a
// runtime check (the protocol attribute's TCP flags); pass nil if the
// signature has no such rules.
func Build(leaves []*registry.Registry, actions []uint32, numRules int, conditional []bool) (*Tree, error) {
	n := len(leaves)
	if n == 0 {
		return nil, cerrors.New(cerrors.KindEmptySignature, "attribute signature must have at least one attribute")
	}

	t := &Tree{n: n, tables: make(map[int]*valuetable.Table, n)}

	if n == 1 {
		dummy := registry.New()
		dummy.StartRange()
		for i := 0; i < numRules; i++ {
			dummy.Collect(uint32(i))
		}
		tbl, root, ruleRoot, err := AssembleActions(dummy, leaves[0], actions, numRules, conditional)
		if err != nil {
			return nil, err
		}
		t.tables[0] = tbl
		t.root = root
		t.rootConditional = ruleRoot
		return t, nil
	}

	regs := make(map[int]*registry.Registry, 2*n)
	for i, leaf := range leaves {
		regs[n+i] = leaf
	}

	for v := n - 1; v >= 1; v-- {
		left, right := regs[2*v], regs[2*v+1]
		if v == 1 {
			tbl, root, ruleRoot, err := AssembleActions(left, right, actions, numRules, conditional)
			if err != nil {
				return nil, err
			}
			t.tables[1] = tbl
			t.root = root
			t.rootConditional = ruleRoot
			continue
		}
		tbl, parent, err := MergeAndCollect(left, right, numRules)
		if err != nil {
			return nil, err
		}
		t.tables[v] = tbl
		regs[v] = parent
	}

	return t, nil
}

// Free releases the tree's tables and root registry.
func (t *Tree) Free() {
	t.tables = nil
	t.root = nil
	t.rootConditional = nil
}
