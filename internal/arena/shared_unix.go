// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux || darwin

package arena

import (
	"golang.org/x/sys/unix"

	cerrors "github.com/coreswitch/pktclass/internal/errors"
)

// NewShared creates an Arena backed by an anonymous MAP_SHARED mapping.
// The mapping has no file descriptor or named shared memory object
// behind it, so only processes forked after the call share its memory.
// Close must be called once the filter is torn down.
func NewShared(capacity int) (*Arena, error) {
	buf, err := unix.Mmap(-1, 0, capacity, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_ANON)
	if err != nil {
		return nil, cerrors.Wrap(err, cerrors.KindOutOfMemory, "mmap shared arena")
	}
	return &Arena{buf: buf, shared: true}, nil
}

// Close unmaps a shared Arena's backing memory. It is a no-op for
// non-shared arenas.
func (a *Arena) Close() error {
	if !a.shared {
		return nil
	}
	err := unix.Munmap(a.buf)
	a.buf = nil
	return err
}
