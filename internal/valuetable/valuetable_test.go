// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package valuetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/coreswitch/pktclass/internal/errors"
)

func TestInitRejectsNegativeDimensions(t *testing.T) {
	_, err := Init(-1, 4)
	require.Error(t, err)
	assert.Equal(t, cerrors.KindCapacityOverflow, cerrors.GetKind(err))
}

func TestInitRejectsOverflowingProduct(t *testing.T) {
	_, err := Init(1<<16, 1<<16)
	require.Error(t, err)
	assert.Equal(t, cerrors.KindCapacityOverflow, cerrors.GetKind(err))
}

func TestUntouchedCellsGetSentinelZero(t *testing.T) {
	tb, err := Init(2, 2)
	require.NoError(t, err)

	n := tb.Compact()
	assert.Equal(t, 1, n) // only the sentinel class
	for l := 0; l < 2; l++ {
		for r := 0; r < 2; r++ {
			assert.Equal(t, uint32(0), tb.Get(l, r))
		}
	}
	assert.Nil(t, tb.Canonical(0))
}

func TestEqualGenerationSetsCollapseToSameID(t *testing.T) {
	tb, err := Init(3, 3)
	require.NoError(t, err)

	// Generation 0 (rule 0): touches (0,0) and (1,1).
	tb.NewGen()
	tb.Touch(0, 0)
	tb.Touch(1, 1)
	// Generation 1 (rule 1): touches (0,0) and (1,1) again, plus (2,2) alone.
	tb.NewGen()
	tb.Touch(0, 0)
	tb.Touch(1, 1)
	tb.Touch(2, 2)

	n := tb.Compact()
	require.Equal(t, 3, n) // sentinel + {(0,0),(1,1)} + {(2,2)}

	idA := tb.Get(0, 0)
	idB := tb.Get(1, 1)
	idC := tb.Get(2, 2)

	assert.NotZero(t, idA)
	assert.Equal(t, idA, idB, "cells touched by the identical generation set must collapse")
	assert.NotEqual(t, idA, idC, "cells with different generation sets must not collapse")

	assert.Equal(t, []uint32{0, 1}, tb.Canonical(idA))
	assert.Equal(t, []uint32{1}, tb.Canonical(idC))
}

func TestCompactIsDeterministicAcrossRuns(t *testing.T) {
	build := func() *Table {
		tb, err := Init(2, 2)
		require.NoError(t, err)
		tb.NewGen()
		tb.Touch(1, 0)
		tb.NewGen()
		tb.Touch(0, 1)
		tb.Touch(1, 0)
		return tb
	}

	a := build()
	b := build()
	na := a.Compact()
	nb := b.Compact()

	require.Equal(t, na, nb)
	for l := 0; l < 2; l++ {
		for r := 0; r < 2; r++ {
			assert.Equal(t, a.Get(l, r), b.Get(l, r))
		}
	}
}

func TestIsTouchedThisGenReflectsCurrentGenerationOnly(t *testing.T) {
	tb, err := Init(1, 1)
	require.NoError(t, err)

	tb.NewGen()
	assert.False(t, tb.IsTouchedThisGen(0, 0))
	tb.Touch(0, 0)
	assert.True(t, tb.IsTouchedThisGen(0, 0))

	tb.NewGen()
	assert.False(t, tb.IsTouchedThisGen(0, 0), "a new generation starts with a clean touched-this-gen flag")
}

func TestFreeClearsBackingStorage(t *testing.T) {
	tb, err := Init(2, 2)
	require.NoError(t, err)
	tb.NewGen()
	tb.Touch(0, 0)
	tb.Compact()

	tb.Free()
	assert.Nil(t, tb.touched)
	assert.Nil(t, tb.final)
	assert.Nil(t, tb.canon)
}
