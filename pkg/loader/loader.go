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

// Package loader maps executables into a fresh address space and builds
// the initial user stack.
//
// The only format supported is a raw flat binary: the file is mapped
// whole at a fixed base and entered at its first byte.
package loader

import (
	"encoding/binary"

	"protonos.dev/protonos/pkg/errors/linuxerr"
	"protonos.dev/protonos/pkg/fs"
	"protonos.dev/protonos/pkg/hostarch"
	"protonos.dev/protonos/pkg/mm"
)

const (
	// LoadAddr is the base address flat binaries are mapped at.
	LoadAddr = hostarch.Addr(0x400000)

	// StackTop is the page above the initial stack.
	StackTop = mm.MaxUserAddr

	// DefaultStackSize is the size of the initial stack mapping.
	DefaultStackSize = 8 * hostarch.PageSize

	// maxImageSize bounds how large a flat binary may be.
	maxImageSize = 64 << 20
)

// RawLoader implements kernel.Loader for flat binaries.
type RawLoader struct {
	// StackSize overrides DefaultStackSize when non-zero.
	StackSize uint64
}

// New returns a RawLoader with default settings.
func New() *RawLoader {
	return &RawLoader{}
}

// Load maps f into m and prepares the stack for argv. It returns the
// entry point and initial stack pointer.
func (l *RawLoader) Load(m *mm.MemoryManager, f *fs.File, argv []string) (uint64, uint64, error) {
	st, err := f.Stat()
	if err != nil {
		return 0, 0, err
	}
	if st.Size == 0 || st.Size > maxImageSize {
		return 0, 0, linuxerr.ENOEXEC
	}

	// The whole image is mapped read-write-execute: a flat binary mixes
	// code and data with no section information to do better with.
	if _, err := m.MMap(mm.MMapOpts{
		Addr:    LoadAddr,
		Length:  uint64(st.Size),
		Perms:   hostarch.AnyAccess,
		Fixed:   true,
		Private: true,
		File:    f,
	}); err != nil {
		return 0, 0, err
	}

	imageEnd, ok := (LoadAddr + hostarch.Addr(st.Size)).RoundUp()
	if !ok {
		return 0, 0, linuxerr.ENOEXEC
	}
	m.SetBrkStart(imageEnd)

	stackSize := l.StackSize
	if stackSize == 0 {
		stackSize = DefaultStackSize
	}
	stack, err := m.MapStack(StackTop, stackSize)
	if err != nil {
		return 0, 0, err
	}
	sp, err := setupStack(m, stack, argv)
	if err != nil {
		return 0, 0, err
	}
	return uint64(LoadAddr), uint64(sp), nil
}

// setupStack writes the initial process stack: argument strings at the
// top, then the argv pointer array and argc, System V style. It returns
// the final stack pointer.
func setupStack(m *mm.MemoryManager, stack hostarch.AddrRange, argv []string) (hostarch.Addr, error) {
	sp := stack.End

	// String data, highest string first.
	ptrs := make([]uint64, 0, len(argv)+1)
	for i := len(argv) - 1; i >= 0; i-- {
		b := append([]byte(argv[i]), 0)
		sp -= hostarch.Addr(len(b))
		if sp < stack.Start {
			return 0, linuxerr.E2BIG
		}
		if _, err := m.CopyOut(sp, b); err != nil {
			return 0, err
		}
		ptrs = append(ptrs, uint64(sp))
	}
	// ptrs was built in reverse.
	for i, j := 0, len(ptrs)-1; i < j; i, j = i+1, j-1 {
		ptrs[i], ptrs[j] = ptrs[j], ptrs[i]
	}
	ptrs = append(ptrs, 0) // argv terminator

	// The pointer area: argc, argv[0..n], NULL. Keep sp 16-byte aligned
	// for the benefit of the entered code.
	words := 1 + len(ptrs)
	area := uint64(words * 8)
	sp -= hostarch.Addr(area)
	sp &^= 15
	if sp < stack.Start {
		return 0, linuxerr.E2BIG
	}

	buf := make([]byte, words*8)
	binary.LittleEndian.PutUint64(buf, uint64(len(argv)))
	for i, p := range ptrs {
		binary.LittleEndian.PutUint64(buf[(1+i)*8:], p)
	}
	if _, err := m.CopyOut(sp, buf); err != nil {
		return 0, err
	}
	return sp, nil
}
