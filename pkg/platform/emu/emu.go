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

// Package emu implements an in-process emulated platform. Page frames are
// Go byte slices and address spaces are software translation maps, which
// makes the full virtual memory path, including copy-on-write, exercisable
// without hardware.
package emu

import (
	"sync"

	"protonos.dev/protonos/pkg/errors/linuxerr"
	"protonos.dev/protonos/pkg/hostarch"
	"protonos.dev/protonos/pkg/platform"
)

type frame struct {
	data []byte
	refs int64
}

// Memory is an emulated physical frame allocator.
type Memory struct {
	mu        sync.Mutex
	frames    map[platform.Frame]*frame
	next      platform.Frame
	maxFrames int
}

// NewMemory returns a Memory that can hold at most maxFrames pages. A
// maxFrames of zero means no limit.
func NewMemory(maxFrames int) *Memory {
	return &Memory{
		frames:    make(map[platform.Frame]*frame),
		maxFrames: maxFrames,
	}
}

// AllocPage implements platform.Memory.AllocPage.
func (m *Memory) AllocPage() (platform.Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.maxFrames > 0 && len(m.frames) >= m.maxFrames {
		return 0, linuxerr.ENOMEM
	}
	m.next++
	f := m.next
	m.frames[f] = &frame{
		data: make([]byte, hostarch.PageSize),
		refs: 1,
	}
	return f, nil
}

// IncRef implements platform.Memory.IncRef.
func (m *Memory) IncRef(f platform.Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fr, ok := m.frames[f]
	if !ok {
		panic("IncRef on unallocated frame")
	}
	fr.refs++
}

// DecRef implements platform.Memory.DecRef.
func (m *Memory) DecRef(f platform.Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fr, ok := m.frames[f]
	if !ok {
		panic("DecRef on unallocated frame")
	}
	fr.refs--
	if fr.refs == 0 {
		delete(m.frames, f)
	}
}

// Refs returns the current reference count of a frame. It exists for
// tests.
func (m *Memory) Refs(f platform.Frame) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	fr, ok := m.frames[f]
	if !ok {
		return 0
	}
	return fr.refs
}

// AllocatedPages returns the number of live frames.
func (m *Memory) AllocatedPages() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.frames)
}

// Slice implements platform.Memory.Slice.
func (m *Memory) Slice(f platform.Frame) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	fr, ok := m.frames[f]
	if !ok {
		panic("Slice on unallocated frame")
	}
	return fr.data
}

type pte struct {
	frame platform.Frame
	at    hostarch.AccessType

	// cow marks a frame shared copy-on-write. The first write fault
	// copies the frame and restores origAt.
	cow    bool
	origAt hostarch.AccessType
}

// AddressSpace is an emulated per-process translation map.
type AddressSpace struct {
	mem *Memory

	mu   sync.Mutex
	ptes map[hostarch.Addr]pte
}

// NewAddressSpace returns an empty address space backed by mem.
func NewAddressSpace(mem *Memory) *AddressSpace {
	return &AddressSpace{
		mem:  mem,
		ptes: make(map[hostarch.Addr]pte),
	}
}

// MapPage implements platform.AddressSpace.MapPage.
func (as *AddressSpace) MapPage(addr hostarch.Addr, f platform.Frame, at hostarch.AccessType) error {
	addr = addr.RoundDown()
	as.mu.Lock()
	defer as.mu.Unlock()
	if old, ok := as.ptes[addr]; ok {
		as.mem.DecRef(old.frame)
	}
	as.ptes[addr] = pte{frame: f, at: at, origAt: at}
	return nil
}

// UnmapPage implements platform.AddressSpace.UnmapPage.
func (as *AddressSpace) UnmapPage(addr hostarch.Addr) {
	addr = addr.RoundDown()
	as.mu.Lock()
	defer as.mu.Unlock()
	if old, ok := as.ptes[addr]; ok {
		as.mem.DecRef(old.frame)
		delete(as.ptes, addr)
	}
}

// Protect implements platform.AddressSpace.Protect.
func (as *AddressSpace) Protect(addr hostarch.Addr, at hostarch.AccessType) {
	addr = addr.RoundDown()
	as.mu.Lock()
	defer as.mu.Unlock()
	p, ok := as.ptes[addr]
	if !ok {
		return
	}
	p.origAt = at
	if p.cow {
		// Keep the write bit masked until the next write fault.
		p.at = at.Intersect(hostarch.ReadExecute)
	} else {
		p.at = at
	}
	as.ptes[addr] = p
}

// Lookup implements platform.AddressSpace.Lookup.
func (as *AddressSpace) Lookup(addr hostarch.Addr) (platform.Frame, hostarch.AccessType, bool) {
	addr = addr.RoundDown()
	as.mu.Lock()
	defer as.mu.Unlock()
	p, ok := as.ptes[addr]
	if !ok {
		return 0, hostarch.NoAccess, false
	}
	return p.frame, p.at, true
}

// Fault implements platform.AddressSpace.Fault.
func (as *AddressSpace) Fault(addr hostarch.Addr, write bool) error {
	addr = addr.RoundDown()
	as.mu.Lock()
	defer as.mu.Unlock()
	p, ok := as.ptes[addr]
	if !ok {
		return linuxerr.EFAULT
	}
	if !write {
		if !p.at.Read {
			return linuxerr.EPERM
		}
		return nil
	}
	if p.at.Write {
		return nil
	}
	if !p.cow || !p.origAt.Write {
		return linuxerr.EPERM
	}

	// Break the copy-on-write share. A frame with a single reference
	// left can simply be made writable again.
	if as.mem.Refs(p.frame) > 1 {
		nf, err := as.mem.AllocPage()
		if err != nil {
			return err
		}
		copy(as.mem.Slice(nf), as.mem.Slice(p.frame))
		as.mem.DecRef(p.frame)
		p.frame = nf
	}
	p.cow = false
	p.at = p.origAt
	as.ptes[addr] = p
	return nil
}

// CloneCOW implements platform.AddressSpace.CloneCOW.
func (as *AddressSpace) CloneCOW() (platform.AddressSpace, error) {
	as.mu.Lock()
	defer as.mu.Unlock()

	child := NewAddressSpace(as.mem)
	for addr, p := range as.ptes {
		as.mem.IncRef(p.frame)
		np := p
		if p.origAt.Write {
			np.cow = true
			np.at = p.origAt.Intersect(hostarch.ReadExecute)
			// The parent loses write access too; its next write
			// takes the same fault path.
			p.cow = true
			p.at = np.at
			as.ptes[addr] = p
		}
		child.ptes[addr] = np
	}
	return child, nil
}

// Release implements platform.AddressSpace.Release.
func (as *AddressSpace) Release() {
	as.mu.Lock()
	defer as.mu.Unlock()
	for addr, p := range as.ptes {
		as.mem.DecRef(p.frame)
		delete(as.ptes, addr)
	}
}

// Platform is the emulated platform.
type Platform struct {
	mem *Memory
}

// New returns an emulated platform with maxFrames pages of memory.
func New(maxFrames int) *Platform {
	return &Platform{mem: NewMemory(maxFrames)}
}

// Memory implements platform.Platform.Memory.
func (p *Platform) Memory() platform.Memory {
	return p.mem
}

// RawMemory returns the concrete Memory, for tests that inspect frame
// reference counts.
func (p *Platform) RawMemory() *Memory {
	return p.mem
}

// NewAddressSpace implements platform.Platform.NewAddressSpace.
func (p *Platform) NewAddressSpace() (platform.AddressSpace, error) {
	return NewAddressSpace(p.mem), nil
}
