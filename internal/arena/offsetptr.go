// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package arena

import "unsafe"

// OffsetPtr is a position-independent pointer: it stores the signed
// byte distance from its own address to the address of T, rather than an
// absolute address (spec.md §9's addr_of/set_offset_of convention). Two
// processes that mmap the same Arena at different base addresses still
// see consistent OffsetPtr values, because the distance between a field
// and its target is invariant under translation.
//
// The zero value represents nil; an OffsetPtr must never be set to point
// at itself (offset 0), since that is indistinguishable from nil.
type OffsetPtr[T any] struct {
	offset int64
}

// IsNil reports whether p points at nothing.
func (p *OffsetPtr[T]) IsNil() bool { return p.offset == 0 }

// Set records target's address relative to p's own address.
func (p *OffsetPtr[T]) Set(target *T) {
	if target == nil {
		p.offset = 0
		return
	}
	p.offset = int64(uintptr(unsafe.Pointer(target)) - uintptr(unsafe.Pointer(p)))
}

// Get dereferences p, computing self+offset at call time.
func (p *OffsetPtr[T]) Get() *T {
	if p.offset == 0 {
		return nil
	}
	return (*T)(unsafe.Pointer(uintptr(unsafe.Pointer(p)) + uintptr(p.offset)))
}
