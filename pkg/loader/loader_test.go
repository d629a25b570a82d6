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

package loader

import (
	"bytes"
	"encoding/binary"
	"testing"

	"protonos.dev/protonos/pkg/abi/linux"
	"protonos.dev/protonos/pkg/errors/linuxerr"
	"protonos.dev/protonos/pkg/fs/memfs"
	"protonos.dev/protonos/pkg/hostarch"
	"protonos.dev/protonos/pkg/mm"
	"protonos.dev/protonos/pkg/platform/emu"
)

func newLoaderTest(t *testing.T) (*mm.MemoryManager, *memfs.Filesystem) {
	t.Helper()
	m, err := mm.New(emu.New(0))
	if err != nil {
		t.Fatalf("mm.New got error %v, want nil", err)
	}
	return m, memfs.New()
}

func TestLoad(t *testing.T) {
	m, fsys := newLoaderTest(t)
	defer m.Release()

	image := []byte{0x90, 0x90, 0xc3} // nop; nop; ret
	fsys.Create("prog", image)
	f, err := fsys.Open("prog", linux.O_RDONLY)
	if err != nil {
		t.Fatalf("Open got error %v, want nil", err)
	}
	defer f.DecRef()

	entry, sp, err := New().Load(m, f, []string{"prog", "-v"})
	if err != nil {
		t.Fatalf("Load got error %v, want nil", err)
	}
	if entry != uint64(LoadAddr) {
		t.Errorf("entry got %#x, want %#x", entry, uint64(LoadAddr))
	}
	if sp%16 != 0 {
		t.Errorf("stack pointer %#x not 16-byte aligned", sp)
	}

	// The image is mapped at the base.
	got := make([]byte, len(image))
	if _, err := m.CopyIn(LoadAddr, got); err != nil {
		t.Fatalf("CopyIn of image got error %v, want nil", err)
	}
	if !bytes.Equal(got, image) {
		t.Errorf("image got %x, want %x", got, image)
	}

	// The stack carries argc, argv pointers and the strings.
	head := make([]byte, 4*8)
	if _, err := m.CopyIn(hostarch.Addr(sp), head); err != nil {
		t.Fatalf("CopyIn of stack got error %v, want nil", err)
	}
	if argc := binary.LittleEndian.Uint64(head); argc != 2 {
		t.Errorf("argc got %d, want 2", argc)
	}
	arg0 := binary.LittleEndian.Uint64(head[8:])
	s, err := m.CopyInString(hostarch.Addr(arg0))
	if err != nil || s != "prog" {
		t.Errorf("argv[0] got (%q, %v), want (\"prog\", nil)", s, err)
	}
	arg1 := binary.LittleEndian.Uint64(head[16:])
	s, err = m.CopyInString(hostarch.Addr(arg1))
	if err != nil || s != "-v" {
		t.Errorf("argv[1] got (%q, %v), want (\"-v\", nil)", s, err)
	}
	if terminator := binary.LittleEndian.Uint64(head[24:]); terminator != 0 {
		t.Errorf("argv terminator got %#x, want 0", terminator)
	}

	// The heap starts above the image.
	if brk := m.Brk(0); brk != LoadAddr+hostarch.PageSize {
		t.Errorf("initial break got %#x, want %#x", brk, LoadAddr+hostarch.PageSize)
	}
}

func TestLoadEmpty(t *testing.T) {
	m, fsys := newLoaderTest(t)
	defer m.Release()

	fsys.Create("empty", nil)
	f, err := fsys.Open("empty", linux.O_RDONLY)
	if err != nil {
		t.Fatalf("Open got error %v, want nil", err)
	}
	defer f.DecRef()

	if _, _, err := New().Load(m, f, nil); err != linuxerr.ENOEXEC {
		t.Errorf("Load of empty file got %v, want ENOEXEC", err)
	}
}
