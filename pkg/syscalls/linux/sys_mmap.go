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

package linux

import (
	"protonos.dev/protonos/pkg/abi/linux"
	"protonos.dev/protonos/pkg/arch"
	"protonos.dev/protonos/pkg/errors/linuxerr"
	"protonos.dev/protonos/pkg/fs"
	"protonos.dev/protonos/pkg/hostarch"
	"protonos.dev/protonos/pkg/kernel"
	"protonos.dev/protonos/pkg/mm"
)

// Mmap implements linux syscall mmap(2).
func Mmap(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	addr := args[0].Pointer()
	length := args[1].Uint64()
	prot := args[2].Int()
	flags := args[3].Int()
	fd := args[4].Int()
	offset := args[5].Int64()

	shared := flags&linux.MAP_SHARED != 0
	private := flags&linux.MAP_PRIVATE != 0
	if shared == private {
		// Exactly one visibility must be chosen.
		return 0, nil, linuxerr.EINVAL
	}

	var file *fs.File
	if flags&linux.MAP_ANONYMOUS == 0 {
		file = t.FDTable().Get(fd)
		if file == nil {
			return 0, nil, linuxerr.EBADF
		}
		defer file.DecRef()
	}

	va, err := t.MemoryManager().MMap(mm.MMapOpts{
		Addr:    addr,
		Length:  length,
		Perms:   hostarch.FromProt(int(prot)),
		Fixed:   flags&linux.MAP_FIXED != 0,
		Private: private,
		File:    file,
		Offset:  offset,
	})
	if err != nil {
		return 0, nil, err
	}
	return uintptr(va), nil, nil
}

// Munmap implements linux syscall munmap(2).
func Munmap(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	addr := args[0].Pointer()
	length := args[1].Uint64()

	return 0, nil, t.MemoryManager().MUnmap(addr, length)
}

// Mprotect implements linux syscall mprotect(2).
func Mprotect(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	addr := args[0].Pointer()
	length := args[1].Uint64()
	prot := args[2].Int()

	return 0, nil, t.MemoryManager().MProtect(addr, length, hostarch.FromProt(int(prot)))
}

// Msync implements linux syscall msync(2).
func Msync(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	addr := args[0].Pointer()
	length := args[1].Uint64()
	flags := args[2].Int()

	return 0, nil, t.MemoryManager().MSync(addr, length, flags)
}

// Brk implements linux syscall brk(2).
func Brk(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	addr := args[0].Pointer()

	return uintptr(t.MemoryManager().Brk(addr)), nil, nil
}
