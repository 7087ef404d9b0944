// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocRoundsToSizeClass(t *testing.T) {
	a := New(1 << 16)

	off, err := a.Alloc(10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), off)
	assert.Equal(t, 16, a.Len())
}

func TestAllocAlignment(t *testing.T) {
	a := New(1 << 16)

	_, err := a.Alloc(10) // 16-byte class
	require.NoError(t, err)
	off, err := a.Alloc(100) // 128-byte class, must align to 64
	require.NoError(t, err)
	assert.Equal(t, int64(0), off%64)
}

func TestFreeAndReuse(t *testing.T) {
	a := New(1 << 16)

	off1, err := a.Alloc(32)
	require.NoError(t, err)

	a.Free(off1, 32)
	_, ok := a.SmallestNonEmptyClass()
	require.True(t, ok)

	off2, err := a.Alloc(32)
	require.NoError(t, err)
	assert.Equal(t, off1, off2, "freed block should be reused before growing the arena")
}

func TestArenaClosure(t *testing.T) {
	a := New(1 << 16)

	offs := make([]int64, 0, 8)
	for i := 0; i < 8; i++ {
		off, err := a.Alloc(32)
		require.NoError(t, err)
		offs = append(offs, off)
	}
	for _, off := range offs {
		a.Free(off, 32)
	}

	assert.Equal(t, a.Allocated(), a.Freed(), "bytes allocated must equal bytes freed after releasing every block")
}

func TestAllocExhaustion(t *testing.T) {
	a := New(64)

	_, err := a.Alloc(64)
	require.NoError(t, err)

	_, err = a.Alloc(64)
	assert.Error(t, err)
}

func TestAllocOversize(t *testing.T) {
	a := New(1 << 24)
	_, err := a.Alloc(1 << 30)
	assert.Error(t, err)
}

func TestOffsetPtrRoundTrip(t *testing.T) {
	type node struct {
		value int
		next  OffsetPtr[node]
	}

	a := &node{value: 1}
	b := &node{value: 2}
	a.next.Set(b)

	assert.False(t, a.next.IsNil())
	assert.Equal(t, 2, a.next.Get().value)
}

func TestOffsetPtrNil(t *testing.T) {
	type node struct {
		next OffsetPtr[node]
	}
	var n node
	assert.True(t, n.next.IsNil())
	assert.Nil(t, n.next.Get())
}
