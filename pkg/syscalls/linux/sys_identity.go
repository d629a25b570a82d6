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
	"protonos.dev/protonos/pkg/kernel"
)

// Getuid implements linux syscall getuid(2).
func Getuid(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	return uintptr(t.Credentials().RealUID), nil, nil
}

// Geteuid implements linux syscall geteuid(2).
func Geteuid(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	return uintptr(t.Credentials().EffectiveUID), nil, nil
}

// Getgid implements linux syscall getgid(2).
func Getgid(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	return uintptr(t.Credentials().RealGID), nil, nil
}

// Getegid implements linux syscall getegid(2).
func Getegid(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	return uintptr(t.Credentials().EffectiveGID), nil, nil
}

// Uname implements linux syscall uname(2).
func Uname(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	addr := args[0].Pointer()

	uts := linux.UtsName{}
	copyUtsField(uts.Sysname[:], "ProtonOS")
	copyUtsField(uts.Nodename[:], "proton")
	copyUtsField(uts.Release[:], "0.1.0")
	copyUtsField(uts.Version[:], "#1")
	copyUtsField(uts.Machine[:], "x86_64")

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, &uts); err != nil {
		return 0, nil, err
	}
	if _, err := t.MemoryManager().CopyOut(addr, buf.Bytes()); err != nil {
		return 0, nil, err
	}
	return 0, nil, nil
}

func copyUtsField(dst []byte, s string) {
	copy(dst, s)
}
