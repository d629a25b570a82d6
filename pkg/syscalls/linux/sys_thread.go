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
	"encoding/binary"

	"protonos.dev/protonos/pkg/abi/linux"
	"protonos.dev/protonos/pkg/arch"
	"protonos.dev/protonos/pkg/errors/linuxerr"
	"protonos.dev/protonos/pkg/hostarch"
	"protonos.dev/protonos/pkg/kernel"
)

// maxArgs bounds the argv vector accepted by execve.
const maxArgs = 256

// Fork implements linux syscall fork(2).
func Fork(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	child, err := t.Fork()
	if err != nil {
		return 0, nil, err
	}
	return uintptr(child.ID()), nil, nil
}

// Execve implements linux syscall execve(2).
func Execve(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	pathAddr := args[0].Pointer()
	argvAddr := args[1].Pointer()

	path, err := t.MemoryManager().CopyInString(pathAddr)
	if err != nil {
		return 0, nil, err
	}
	argv, err := copyInArgv(t, argvAddr)
	if err != nil {
		return 0, nil, err
	}

	if err := t.Execve(path, argv); err != nil {
		return 0, nil, err
	}
	// The new image starts from its own registers; there is no return
	// value to deliver.
	return 0, kernel.CtrlNoWriteback, nil
}

// copyInArgv reads a NULL-terminated array of string pointers from user
// memory. A zero address is an empty vector.
func copyInArgv(t *kernel.Task, addr hostarch.Addr) ([]string, error) {
	if addr == 0 {
		return nil, nil
	}
	var argv []string
	var ptr [8]byte
	for i := 0; ; i++ {
		if i >= maxArgs {
			return nil, linuxerr.E2BIG
		}
		if _, err := t.MemoryManager().CopyIn(addr+hostarch.Addr(i*8), ptr[:]); err != nil {
			return nil, err
		}
		p := binary.LittleEndian.Uint64(ptr[:])
		if p == 0 {
			return argv, nil
		}
		s, err := t.MemoryManager().CopyInString(hostarch.Addr(p))
		if err != nil {
			return nil, err
		}
		argv = append(argv, s)
	}
}

// Exit implements linux syscall exit(2) and exit_group(2).
func Exit(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	code := args[0].Int()

	t.Exit(linux.WaitStatusExit(code & 0xff))
	return 0, kernel.CtrlDoExit, nil
}

// Wait4 implements linux syscall wait4(2).
func Wait4(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	pid := args[0].Int()
	statusAddr := args[1].Pointer()
	options := args[2].Int()

	if options&^(linux.WNOHANG|linux.WUNTRACED|linux.WCONTINUED) != 0 {
		return 0, nil, linuxerr.EINVAL
	}

	res, err := t.Wait4(pid, options)
	if err != nil {
		return 0, nil, err
	}
	if res.TID == 0 {
		// WNOHANG with nothing to report.
		return 0, nil, nil
	}
	if statusAddr != 0 {
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], uint32(res.Status))
		if _, err := t.MemoryManager().CopyOut(statusAddr, buf[:]); err != nil {
			return 0, nil, err
		}
	}
	return uintptr(res.TID), nil, nil
}

// Getpid implements linux syscall getpid(2).
func Getpid(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	return uintptr(t.ID()), nil, nil
}

// Getppid implements linux syscall getppid(2).
func Getppid(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	parent := t.Parent()
	if parent == nil {
		return 0, nil, nil
	}
	return uintptr(parent.ID()), nil, nil
}

// Setpgid implements linux syscall setpgid(2).
func Setpgid(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	pid := args[0].Int()
	pgid := args[1].Int()

	return 0, nil, t.SetProcessGroupID(kernel.ThreadID(pid), kernel.ThreadID(pgid))
}

// Getpgrp implements linux syscall getpgrp(2).
func Getpgrp(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	return uintptr(t.ProcessGroupID()), nil, nil
}

// Getpgid implements linux syscall getpgid(2).
func Getpgid(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	pid := args[0].Int()
	if pid == 0 {
		return uintptr(t.ProcessGroupID()), nil, nil
	}
	target := t.Kernel().TaskSet().TaskWithID(kernel.ThreadID(pid))
	if target == nil {
		return 0, nil, linuxerr.ESRCH
	}
	return uintptr(target.ProcessGroupID()), nil, nil
}

// Setsid implements linux syscall setsid(2).
func Setsid(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	sid, err := t.SetSession()
	if err != nil {
		return 0, nil, err
	}
	return uintptr(sid), nil, nil
}

// Getsid implements linux syscall getsid(2).
func Getsid(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	pid := args[0].Int()
	if pid == 0 {
		return uintptr(t.SessionID()), nil, nil
	}
	target := t.Kernel().TaskSet().TaskWithID(kernel.ThreadID(pid))
	if target == nil {
		return 0, nil, linuxerr.ESRCH
	}
	return uintptr(target.SessionID()), nil, nil
}

// SchedYield implements linux syscall sched_yield(2).
func SchedYield(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	t.Yield()
	return 0, nil, nil
}
