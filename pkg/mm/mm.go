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

// Package mm provides a memory management subsystem: per-process virtual
// address space layout, the region set behind mmap and friends, and safe
// copying between kernel and user memory.
package mm

import (
	"fmt"
	"sync"

	"github.com/google/btree"

	"protonos.dev/protonos/pkg/errors/linuxerr"
	"protonos.dev/protonos/pkg/fs"
	"protonos.dev/protonos/pkg/hostarch"
	"protonos.dev/protonos/pkg/platform"
)

// User address space layout. The bottom pages are kept unmapped so nil
// dereferences fault, and the top is capped below the canonical boundary.
const (
	// MinUserAddr is the lowest address mmap will place a mapping at.
	MinUserAddr = hostarch.Addr(0x10000)

	// MaxUserAddr is the top of the user address space.
	MaxUserAddr = hostarch.Addr(0x00007ffffffff000)
)

// Region is a contiguous run of mapped pages sharing the same protection,
// backing and visibility.
type Region struct {
	ar hostarch.AddrRange

	// at is the current protection, maxAt the widest protection
	// mprotect may restore.
	at    hostarch.AccessType
	maxAt hostarch.AccessType

	// private is true for MAP_PRIVATE mappings.
	private bool

	// file is the backing file, or nil for anonymous memory. off is the
	// file offset corresponding to ar.Start.
	file *fs.File
	off  int64
}

// Range returns the address range the region covers.
func (r *Region) Range() hostarch.AddrRange {
	return r.ar
}

// Perms returns the region's current protection.
func (r *Region) Perms() hostarch.AccessType {
	return r.at
}

// Private returns whether this is a private mapping.
func (r *Region) Private() bool {
	return r.private
}

// String implements fmt.Stringer.
func (r *Region) String() string {
	kind := "shared"
	if r.private {
		kind = "private"
	}
	backing := "anon"
	if r.file != nil {
		backing = fmt.Sprintf("file+%#x", r.off)
	}
	return fmt.Sprintf("%v %v %s %s", r.ar, r.at, kind, backing)
}

// copyRegion returns a copy of r covering sub, adjusting the file offset.
// sub must be a subrange of r.ar.
func (r *Region) copyRegion(sub hostarch.AddrRange) *Region {
	nr := *r
	nr.ar = sub
	if r.file != nil {
		r.file.IncRef()
		nr.off = r.off + int64(sub.Start-r.ar.Start)
	}
	return &nr
}

func (r *Region) release() {
	if r.file != nil {
		r.file.DecRef()
		r.file = nil
	}
}

// MemoryManager owns one process's virtual address space.
type MemoryManager struct {
	mem platform.Memory
	as  platform.AddressSpace

	// mu guards the region set and brk. Copy operations take it for
	// reading so munmap cannot pull pages out from under them.
	mu      sync.RWMutex
	regions *btree.BTreeG[*Region]

	// brk is the program break segment. brk.Start is fixed at Brk setup,
	// brk.End moves.
	brk hostarch.AddrRange
}

func regionLess(a, b *Region) bool {
	return a.ar.Start < b.ar.Start
}

// New returns an empty MemoryManager with a fresh address space from p.
func New(p platform.Platform) (*MemoryManager, error) {
	as, err := p.NewAddressSpace()
	if err != nil {
		return nil, err
	}
	return &MemoryManager{
		mem:     p.Memory(),
		as:      as,
		regions: btree.NewG[*Region](8, regionLess),
	}, nil
}

// AddressSpace returns the platform address space, for trap delivery.
func (mm *MemoryManager) AddressSpace() platform.AddressSpace {
	return mm.as
}

// VirtualMemorySize returns the number of mapped bytes.
func (mm *MemoryManager) VirtualMemorySize() uint64 {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	var total uint64
	mm.regions.Ascend(func(r *Region) bool {
		total += uint64(r.ar.Length())
		return true
	})
	return total
}

// findRegion returns the region containing addr, or nil.
//
// Preconditions: mm.mu must be locked.
func (mm *MemoryManager) findRegion(addr hostarch.Addr) *Region {
	var found *Region
	mm.regions.DescendLessOrEqual(&Region{ar: hostarch.AddrRange{Start: addr}}, func(r *Region) bool {
		if r.ar.Contains(addr) {
			found = r
		}
		return false
	})
	return found
}

// regionsIn collects the regions overlapping ar, in ascending order.
//
// Preconditions: mm.mu must be locked.
func (mm *MemoryManager) regionsIn(ar hostarch.AddrRange) []*Region {
	var out []*Region
	// A region starting below ar.Start may still reach into it.
	if r := mm.findRegion(ar.Start); r != nil {
		out = append(out, r)
	}
	mm.regions.AscendGreaterOrEqual(&Region{ar: hostarch.AddrRange{Start: ar.Start}}, func(r *Region) bool {
		if r.ar.Start >= ar.End {
			return false
		}
		if len(out) == 0 || out[len(out)-1] != r {
			out = append(out, r)
		}
		return true
	})
	return out
}

// findGap returns the start of an unmapped, page-aligned run of length
// bytes, searching downward from the top of the user address space. A
// non-zero hint is tried first.
//
// Preconditions: mm.mu must be locked; length is page-aligned and
// non-zero.
func (mm *MemoryManager) findGap(hint hostarch.Addr, length uint64) (hostarch.Addr, error) {
	if hint != 0 {
		hint = hint.RoundDown()
		if ar, ok := hint.ToRange(length); ok && ar.Start >= MinUserAddr && ar.End <= MaxUserAddr {
			if len(mm.regionsIn(ar)) == 0 && !mm.overlapsBrk(ar) {
				return ar.Start, nil
			}
		}
	}

	// Walk regions top down, testing the gap above each.
	ceiling := MaxUserAddr
	var result hostarch.Addr
	found := false
	mm.regions.Descend(func(r *Region) bool {
		if ceiling >= r.ar.End && uint64(ceiling-r.ar.End) >= length {
			result = ceiling - hostarch.Addr(length)
			found = true
			return false
		}
		ceiling = r.ar.Start
		return true
	})
	if !found {
		if ceiling < MinUserAddr || uint64(ceiling-MinUserAddr) < length {
			return 0, linuxerr.ENOMEM
		}
		result = ceiling - hostarch.Addr(length)
	}
	// Keep clear of the heap segment.
	if ar := (hostarch.AddrRange{Start: result, End: result + hostarch.Addr(length)}); mm.overlapsBrk(ar) {
		return 0, linuxerr.ENOMEM
	}
	return result, nil
}

// overlapsBrk reports whether ar intrudes on the heap segment. A heap
// that has not grown past its start occupies no pages and blocks
// nothing.
func (mm *MemoryManager) overlapsBrk(ar hostarch.AddrRange) bool {
	return mm.brk.Start < mm.brk.End && ar.Overlaps(mm.brk)
}

// Release drops every mapping and the address space itself. The
// MemoryManager must not be used afterwards.
func (mm *MemoryManager) Release() {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.regions.Ascend(func(r *Region) bool {
		r.release()
		return true
	})
	mm.regions.Clear(false)
	mm.as.Release()
}

// Fork returns a copy of the address space for a new child. Writable
// pages are shared copy-on-write with the parent.
func (mm *MemoryManager) Fork() (*MemoryManager, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	childAS, err := mm.as.CloneCOW()
	if err != nil {
		return nil, err
	}
	child := &MemoryManager{
		mem:     mm.mem,
		as:      childAS,
		regions: btree.NewG[*Region](8, regionLess),
		brk:     mm.brk,
	}
	mm.regions.Ascend(func(r *Region) bool {
		child.regions.ReplaceOrInsert(r.copyRegion(r.ar))
		return true
	})
	return child, nil
}
