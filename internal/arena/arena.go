// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package arena implements the position-independent allocator backing a
// compiled filter (spec.md §4.7, §9), plus OffsetPtr, a pointer stored as
// a distance from its own address. The compiler's registries, value
// tables and attribute state are not allocated from an Arena: they are
// ordinary Go slices and maps. The only data a filter writes into an
// Arena is the 4-byte root classifier id published by
// classify.Filter.ShareTo.
package arena

import (
	"math/bits"

	cerrors "github.com/coreswitch/pktclass/internal/errors"
)

const (
	minClassShift = 4  // smallest block: 16 bytes
	maxClassShift = 20 // largest block: 1 MiB
	numClasses    = maxClassShift - minClassShift + 1
)

// classSize returns the block size of size class idx.
func classSize(idx int) int {
	return 1 << (minClassShift + idx)
}

// classFor returns the smallest size class that can hold n bytes.
func classFor(n int) (int, bool) {
	if n <= 0 {
		n = 1
	}
	shift := bits.Len(uint(n - 1))
	if shift < minClassShift {
		shift = minClassShift
	}
	idx := shift - minClassShift
	if idx >= numClasses {
		return 0, false
	}
	return idx, true
}

// freeList is a LIFO stack of offsets into Arena.buf belonging to one size class.
type freeList struct {
	offsets []int64
}

func (f *freeList) push(off int64) { f.offsets = append(f.offsets, off) }

func (f *freeList) pop() (int64, bool) {
	if len(f.offsets) == 0 {
		return 0, false
	}
	n := len(f.offsets) - 1
	off := f.offsets[n]
	f.offsets = f.offsets[:n]
	return off, true
}

// Arena is a single, exclusively-owned block allocator. It never moves a
// live allocation, so pointers derived from it (see OffsetPtr) remain
// valid for the Arena's lifetime.
type Arena struct {
	buf      []byte
	used     int64
	classes  [numClasses]freeList
	nonEmpty uint32 // bit i set iff classes[i] has a free block
	shared   bool

	allocated int64
	freed     int64
}

// New creates an Arena backed by a plain Go byte slice of the given
// capacity, for in-process use and tests.
func New(capacity int) *Arena {
	return &Arena{buf: make([]byte, capacity)}
}

// Len returns the number of bytes currently carved out of the arena
// (including freed-but-not-reused blocks still counted against capacity).
func (a *Arena) Len() int { return int(a.used) }

// Cap returns the arena's total backing capacity.
func (a *Arena) Cap() int { return len(a.buf) }

// Allocated returns the cumulative number of bytes ever handed out by Alloc.
func (a *Arena) Allocated() int64 { return a.allocated }

// Freed returns the cumulative number of bytes ever returned via Free.
func (a *Arena) Freed() int64 { return a.freed }

// Bytes exposes the arena's raw backing storage. Callers use it together
// with the offsets returned by Alloc to build typed OffsetPtr values.
func (a *Arena) Bytes() []byte { return a.buf }

// alignment returns the alignment guarantee for a block of size b: min(b, 64).
func alignment(b int) int64 {
	if b > 64 {
		return 64
	}
	return int64(b)
}

// Alloc reserves a block of at least size bytes and returns its offset
// into Bytes(). The block is aligned to min(size, 64) bytes.
func (a *Arena) Alloc(size int) (int64, error) {
	idx, ok := classFor(size)
	if !ok {
		return 0, cerrors.Errorf(cerrors.KindOutOfMemory, "allocation of %d bytes exceeds largest size class", size)
	}

	if off, ok := a.classes[idx].pop(); ok {
		if a.classes[idx].offsets == nil || len(a.classes[idx].offsets) == 0 {
			a.nonEmpty &^= 1 << uint(idx)
		}
		a.allocated += int64(classSize(idx))
		return off, nil
	}

	blockSize := int64(classSize(idx))
	align := alignment(classSize(idx))
	aligned := alignUp(a.used, align)
	end := aligned + blockSize
	if end > int64(len(a.buf)) {
		return 0, cerrors.Errorf(cerrors.KindOutOfMemory, "arena exhausted: need %d bytes, have %d remaining", blockSize, int64(len(a.buf))-aligned)
	}

	a.used = end
	a.allocated += blockSize
	return aligned, nil
}

// Free returns a previously allocated block (of the size originally
// passed to Alloc) to its size class's free list.
func (a *Arena) Free(offset int64, size int) {
	idx, ok := classFor(size)
	if !ok {
		return
	}
	a.classes[idx].push(offset)
	a.nonEmpty |= 1 << uint(idx)
	a.freed += int64(classSize(idx))
}

// SmallestNonEmptyClass reports the smallest size class index with a free
// block available, for O(1) smallest-fit probing, and whether one exists.
func (a *Arena) SmallestNonEmptyClass() (int, bool) {
	if a.nonEmpty == 0 {
		return 0, false
	}
	return bits.TrailingZeros32(a.nonEmpty), true
}

func alignUp(v, align int64) int64 {
	if align <= 1 {
		return v
	}
	rem := v % align
	if rem == 0 {
		return v
	}
	return v + (align - rem)
}
