// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreswitch/pktclass/internal/attrs"
	"github.com/coreswitch/pktclass/internal/registry"
)

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(5))
	assert.False(t, IsTerminal(5|NonTerminateBit))
}

func TestMergeAndCollectIntersectsRuleIDs(t *testing.T) {
	left := registry.New()
	left.StartRange()
	left.Collect(0)
	left.Collect(1)
	left.StartRange()
	left.Collect(2)

	right := registry.New()
	right.StartRange()
	right.Collect(1)
	right.Collect(2)

	tbl, parent, err := MergeAndCollect(left, right, 3)
	require.NoError(t, err)

	id := tbl.Get(0, 0)
	assert.Equal(t, []uint32{1}, parent.Range(id))

	id2 := tbl.Get(1, 0)
	assert.Equal(t, []uint32{2}, parent.Range(id2))
}

func TestAssembleActionsTruncatesAtTerminal(t *testing.T) {
	// S1 from spec: single attribute (PortSrc) over three rules.
	reg, state, err := attrs.BuildPort([][]attrs.PortRange{
		{{From: 1000, To: 2000}},
		{{From: 1500, To: 65535}},
		{{From: 0, To: 3000}},
	})
	require.NoError(t, err)

	actions := []uint32{10, 20 | NonTerminateBit, 30}

	tr, err := Build([]*registry.Registry{reg}, actions, 3, nil)
	require.NoError(t, err)

	got := func(port uint16) []uint32 {
		id := tr.Query([]uint32{state.Query(port)})
		return tr.RootActions(id)
	}

	assert.Equal(t, []uint32{10}, got(1500))
	assert.Equal(t, []uint32{20 | NonTerminateBit, 30}, got(2500))
	// Port 3500 only falls within R2's range (1500-65535, non-terminal);
	// nothing later closes the list, so R2 alone is the correct result.
	assert.Equal(t, []uint32{20 | NonTerminateBit}, got(3500))
}

func TestAssembleActionsDefersClosureForConditionalRules(t *testing.T) {
	// Two fully-overlapping rules; rule 0 carries a runtime (TCP flag)
	// AND-check and must not close the cell on its own terminal bit,
	// so rule 1's action is still reachable once rule 0's check fails
	// at query time.
	reg, state, err := attrs.BuildPort([][]attrs.PortRange{
		{{From: 0, To: 65535}},
		{{From: 0, To: 65535}},
	})
	require.NoError(t, err)

	actions := []uint32{5, 9}
	conditional := []bool{true, false}

	tr, err := Build([]*registry.Registry{reg}, actions, 2, conditional)
	require.NoError(t, err)

	id := tr.Query([]uint32{state.Query(1234)})
	assert.Equal(t, []uint32{5, 9}, tr.RootActions(id))
	assert.Equal(t, []uint32{0, NoConditionalRule}, tr.RootConditionalRuleIDs(id))
}

func TestBuildRejectsEmptySignature(t *testing.T) {
	_, err := Build(nil, nil, 0, nil)
	assert.Error(t, err)
}

func TestBuildTwoAttributeSignature(t *testing.T) {
	// S2 from spec: signature [PortSrc, PortDst].
	srcReg, srcState, err := attrs.BuildPort([][]attrs.PortRange{
		{{From: 10, To: 30}},
		{{From: 25, To: 40}},
	})
	require.NoError(t, err)

	dstReg, dstState, err := attrs.BuildPort([][]attrs.PortRange{
		{{From: 20, To: 30}},
		{{From: 10, To: 35}},
	})
	require.NoError(t, err)

	actions := []uint32{1, 2}
	tr, err := Build([]*registry.Registry{srcReg, dstReg}, actions, 2, nil)
	require.NoError(t, err)

	query := func(src, dst uint16) []uint32 {
		id := tr.Query([]uint32{srcState.Query(src), dstState.Query(dst)})
		return tr.RootActions(id)
	}

	assert.Equal(t, []uint32{1}, query(15, 25))

	got := query(27, 25)
	assert.Contains(t, [][]uint32{{1, 2}, {1}}, got, "result depends on R1's terminality, per spec.md S2")
}
