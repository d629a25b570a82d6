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

package emu

import (
	"testing"

	"protonos.dev/protonos/pkg/errors/linuxerr"
	"protonos.dev/protonos/pkg/hostarch"
)

func TestAllocFree(t *testing.T) {
	m := NewMemory(2)

	f1, err := m.AllocPage()
	if err != nil {
		t.Fatalf("AllocPage got error %v, want nil", err)
	}
	if got := len(m.Slice(f1)); got != hostarch.PageSize {
		t.Errorf("frame size got %d, want %d", got, hostarch.PageSize)
	}
	for _, b := range m.Slice(f1) {
		if b != 0 {
			t.Fatalf("fresh frame not zero-filled")
		}
	}

	if _, err := m.AllocPage(); err != nil {
		t.Fatalf("second AllocPage got error %v, want nil", err)
	}
	if _, err := m.AllocPage(); err != linuxerr.ENOMEM {
		t.Errorf("AllocPage beyond limit got %v, want ENOMEM", err)
	}

	m.DecRef(f1)
	if _, err := m.AllocPage(); err != nil {
		t.Errorf("AllocPage after free got error %v, want nil", err)
	}
}

func TestFaultUnmapped(t *testing.T) {
	p := New(0)
	as := NewAddressSpace(p.RawMemory())

	if err := as.Fault(0x1000, false); err != linuxerr.EFAULT {
		t.Errorf("read fault on unmapped page got %v, want EFAULT", err)
	}
	if err := as.Fault(0x1000, true); err != linuxerr.EFAULT {
		t.Errorf("write fault on unmapped page got %v, want EFAULT", err)
	}
}

func TestProtect(t *testing.T) {
	p := New(0)
	as := NewAddressSpace(p.RawMemory())
	m := p.RawMemory()

	f, err := m.AllocPage()
	if err != nil {
		t.Fatalf("AllocPage got error %v, want nil", err)
	}
	if err := as.MapPage(0x1000, f, hostarch.ReadWrite); err != nil {
		t.Fatalf("MapPage got error %v, want nil", err)
	}

	if err := as.Fault(0x1000, true); err != nil {
		t.Fatalf("write fault on writable page got %v, want nil", err)
	}

	as.Protect(0x1000, hostarch.Read)
	if err := as.Fault(0x1000, true); err != linuxerr.EPERM {
		t.Errorf("write fault on read-only page got %v, want EPERM", err)
	}
	if err := as.Fault(0x1000, false); err != nil {
		t.Errorf("read fault on read-only page got %v, want nil", err)
	}
}

func TestCloneCOW(t *testing.T) {
	p := New(0)
	m := p.RawMemory()
	parent := NewAddressSpace(m)

	f, err := m.AllocPage()
	if err != nil {
		t.Fatalf("AllocPage got error %v, want nil", err)
	}
	copy(m.Slice(f), []byte("before"))
	if err := parent.MapPage(0x1000, f, hostarch.ReadWrite); err != nil {
		t.Fatalf("MapPage got error %v, want nil", err)
	}

	childAS, err := parent.CloneCOW()
	if err != nil {
		t.Fatalf("CloneCOW got error %v, want nil", err)
	}
	child := childAS.(*AddressSpace)

	if got := m.Refs(f); got != 2 {
		t.Errorf("frame refs after clone got %d, want 2", got)
	}

	// A write in the child must copy the frame and leave the parent's
	// bytes intact.
	if err := child.Fault(0x1000, true); err != nil {
		t.Fatalf("child write fault got %v, want nil", err)
	}
	cf, _, ok := child.Lookup(0x1000)
	if !ok {
		t.Fatalf("child page vanished after fault")
	}
	if cf == f {
		t.Fatalf("child still shares parent's frame after write fault")
	}
	copy(m.Slice(cf), []byte("after!"))
	if got := string(m.Slice(f)[:6]); got != "before" {
		t.Errorf("parent frame contents got %q, want %q", got, "before")
	}

	// The parent's next write breaks its own (now sole) share in place.
	if err := parent.Fault(0x1000, true); err != nil {
		t.Fatalf("parent write fault got %v, want nil", err)
	}
	pf, at, ok := parent.Lookup(0x1000)
	if !ok || pf != f {
		t.Errorf("parent frame after fault got (%v, %v), want (%v, true)", pf, ok, f)
	}
	if !at.Write {
		t.Errorf("parent page not writable after fault, access %v", at)
	}
}

func TestRelease(t *testing.T) {
	p := New(0)
	m := p.RawMemory()
	as := NewAddressSpace(m)

	for i := 0; i < 4; i++ {
		f, err := m.AllocPage()
		if err != nil {
			t.Fatalf("AllocPage got error %v, want nil", err)
		}
		if err := as.MapPage(hostarch.Addr(0x1000*(i+1)), f, hostarch.Read); err != nil {
			t.Fatalf("MapPage got error %v, want nil", err)
		}
	}
	if got := m.AllocatedPages(); got != 4 {
		t.Fatalf("allocated pages got %d, want 4", got)
	}

	as.Release()
	if got := m.AllocatedPages(); got != 0 {
		t.Errorf("allocated pages after release got %d, want 0", got)
	}
}
