// Copyright 2025 The ProtonOS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package platform provides the interface between the kernel and the
// machine it runs on: physical page frames and per-process address spaces.
//
// The kernel never touches page tables or frame allocators directly. It
// asks a Platform for an AddressSpace and a Memory, and expresses all
// mapping and copy operations through them, so the same virtual memory
// code runs unchanged over an emulated MMU or a real one.
package platform

import (
	"protonos.dev/protonos/pkg/errors/linuxerr"
	"protonos.dev/protonos/pkg/hostarch"
)

// Frame identifies a physical page frame.
type Frame uint64

// Memory is a physical page frame allocator. Frames are reference counted
// so that copy-on-write address spaces can share them.
type Memory interface {
	// AllocPage returns a newly allocated, zero-filled frame with a
	// reference count of one. It returns linuxerr.ENOMEM when no frames
	// are left.
	AllocPage() (Frame, error)

	// IncRef adds a reference to the frame.
	IncRef(f Frame)

	// DecRef drops a reference to the frame, freeing it when the count
	// reaches zero.
	DecRef(f Frame)

	// Slice returns the frame's backing bytes. The returned slice is
	// exactly one page long and stays valid while the caller holds a
	// reference to the frame.
	Slice(f Frame) []byte
}

// AddressSpace is a single process's view of virtual memory. All addresses
// are page-aligned; the virtual memory manager deals in whole pages.
type AddressSpace interface {
	// MapPage establishes a translation from the page containing addr to
	// frame f with access at. The caller transfers one frame reference
	// to the address space.
	MapPage(addr hostarch.Addr, f Frame, at hostarch.AccessType) error

	// UnmapPage removes the translation for the page containing addr, if
	// any, dropping the frame reference it held.
	UnmapPage(addr hostarch.Addr)

	// Protect changes the access allowed on an existing translation. It
	// is a no-op for unmapped pages.
	Protect(addr hostarch.Addr, at hostarch.AccessType)

	// Lookup returns the frame and current access for the page
	// containing addr.
	Lookup(addr hostarch.Addr) (Frame, hostarch.AccessType, bool)

	// Fault resolves an access to addr, breaking copy-on-write sharing
	// when a write hits a shared frame. It returns linuxerr.EFAULT for
	// unmapped pages and linuxerr.EPERM for accesses the translation
	// does not allow.
	Fault(addr hostarch.Addr, write bool) error

	// CloneCOW returns a copy of the address space that shares all
	// frames copy-on-write.
	CloneCOW() (AddressSpace, error)

	// Release drops all translations and their frame references.
	Release()
}

// Platform ties a Memory to a way of creating address spaces.
type Platform interface {
	// Memory returns the platform's frame allocator.
	Memory() Memory

	// NewAddressSpace returns an empty address space.
	NewAddressSpace() (AddressSpace, error)
}

// ErrNoMemory is returned by allocators when physical memory is exhausted.
var ErrNoMemory = linuxerr.ENOMEM
