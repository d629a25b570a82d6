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
	"bytes"
	"encoding/binary"

	"protonos.dev/protonos/pkg/abi/linux"
	"protonos.dev/protonos/pkg/arch"
	"protonos.dev/protonos/pkg/errors/linuxerr"
	"protonos.dev/protonos/pkg/hostarch"
	"protonos.dev/protonos/pkg/kernel"
)

// copyOutStat writes a stat buffer to user memory in the amd64 layout.
func copyOutStat(t *kernel.Task, addr hostarch.Addr, s *linux.Stat) error {
	var buf bytes.Buffer
	buf.Grow(linux.SizeOfStat)
	if err := binary.Write(&buf, binary.LittleEndian, s); err != nil {
		return err
	}
	_, err := t.MemoryManager().CopyOut(addr, buf.Bytes())
	return err
}

// Stat implements linux syscall stat(2).
func Stat(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	pathAddr := args[0].Pointer()
	statAddr := args[1].Pointer()

	path, err := t.MemoryManager().CopyInString(pathAddr)
	if err != nil {
		return 0, nil, err
	}
	s, err := t.Kernel().RootFS().Stat(path)
	if err != nil {
		return 0, nil, err
	}
	return 0, nil, copyOutStat(t, statAddr, &s)
}

// Fstat implements linux syscall fstat(2).
func Fstat(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	fd := args[0].Int()
	statAddr := args[1].Pointer()

	file := t.FDTable().Get(fd)
	if file == nil {
		return 0, nil, linuxerr.EBADF
	}
	defer file.DecRef()

	s, err := file.Stat()
	if err != nil {
		return 0, nil, err
	}
	return 0, nil, copyOutStat(t, statAddr, &s)
}
