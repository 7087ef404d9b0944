// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build !linux && !darwin

package arena

import cerrors "github.com/coreswitch/pktclass/internal/errors"

// NewShared is unavailable on platforms without an mmap syscall wrapper
// wired up; use New instead.
func NewShared(capacity int) (*Arena, error) {
	return nil, cerrors.New(cerrors.KindInternal, "shared arenas are not supported on this platform")
}

// Close is a no-op for a non-shared Arena on this platform.
func (a *Arena) Close() error { return nil }
