// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStartRangeAssignsSequentialIDs(t *testing.T) {
	r := New()
	id0 := r.StartRange()
	id1 := r.StartRange()
	id2 := r.StartRange()

	assert.Equal(t, uint32(0), id0)
	assert.Equal(t, uint32(1), id1)
	assert.Equal(t, uint32(2), id2)
	assert.Equal(t, uint32(3), r.Capacity())
}

func TestCollectAppendsToCurrentRange(t *testing.T) {
	r := New()
	r.StartRange()
	r.Collect(3)
	r.Collect(5)
	r.StartRange()
	r.Collect(7)

	assert.Equal(t, []uint32{3, 5}, r.Range(0))
	assert.Equal(t, []uint32{7}, r.Range(1))
}

func TestEmptyRangeIsValid(t *testing.T) {
	r := New()
	r.StartRange()

	assert.Empty(t, r.Range(0))
}

func TestCollectIntoArbitraryRange(t *testing.T) {
	r := New()
	r.StartRange()
	r.StartRange()
	r.CollectInto(0, 1)
	r.CollectInto(1, 2)
	r.CollectInto(0, 9)

	assert.Equal(t, []uint32{1, 9}, r.Range(0))
	assert.Equal(t, []uint32{2}, r.Range(1))
}

func TestSetRangeReplacesContents(t *testing.T) {
	r := New()
	r.StartRange()
	r.Collect(1)
	r.SetRange(0, []uint32{4, 5, 6})

	assert.Equal(t, []uint32{4, 5, 6}, r.Range(0))
}

func TestFreeClearsRegistry(t *testing.T) {
	r := New()
	r.StartRange()
	r.Collect(1)
	r.Free()

	assert.Equal(t, uint32(0), r.Capacity())
}
