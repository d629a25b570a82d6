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

// Package linux provides syscall implementations with Linux semantics and
// the AMD64 numbering.
package linux

import (
	"protonos.dev/protonos/pkg/errors/linuxerr"
	"protonos.dev/protonos/pkg/kernel"
	"protonos.dev/protonos/pkg/syscalls"
)

// AMD64 returns the syscall table for the x86-64 Linux personality.
func AMD64() *kernel.SyscallTable {
	s := kernel.NewSyscallTable("amd64")

	s.Register(0, "read", Read)
	s.Register(1, "write", Write)
	s.Register(2, "open", Open)
	s.Register(3, "close", Close)
	s.Register(4, "stat", Stat)
	s.Register(5, "fstat", Fstat)
	s.Register(8, "lseek", Lseek)
	s.Register(9, "mmap", Mmap)
	s.Register(10, "mprotect", Mprotect)
	s.Register(11, "munmap", Munmap)
	s.Register(12, "brk", Brk)
	s.Register(13, "rt_sigaction", RtSigaction)
	s.Register(14, "rt_sigprocmask", RtSigprocmask)
	s.Register(22, "pipe", Pipe)
	s.Register(24, "sched_yield", SchedYield)
	s.Register(26, "msync", Msync)
	s.Register(32, "dup", Dup)
	s.Register(33, "dup2", Dup2)
	s.Register(39, "getpid", Getpid)
	s.Register(57, "fork", Fork)
	s.Register(58, "vfork", Fork)
	s.Register(59, "execve", Execve)
	s.Register(60, "exit", Exit)
	s.Register(61, "wait4", Wait4)
	s.Register(62, "kill", Kill)
	s.Register(63, "uname", Uname)
	s.Register(87, "unlink", Unlink)
	s.Register(96, "gettimeofday", Gettimeofday)
	s.Register(102, "getuid", Getuid)
	s.Register(104, "getgid", Getgid)
	s.Register(107, "geteuid", Geteuid)
	s.Register(108, "getegid", Getegid)
	s.Register(109, "setpgid", Setpgid)
	s.Register(110, "getppid", Getppid)
	s.Register(111, "getpgrp", Getpgrp)
	s.Register(112, "setsid", Setsid)
	s.Register(121, "getpgid", Getpgid)
	s.Register(124, "getsid", Getsid)
	s.Register(201, "time", Time)
	s.Register(228, "clock_gettime", ClockGettime)
	s.Register(293, "pipe2", Pipe2)

	// Explicitly unsupported calls that programs probe for.
	s.Register(7, "poll", syscalls.Error(linuxerr.ENOSYS))
	s.Register(56, "clone", syscalls.Error(linuxerr.ENOSYS))
	s.Register(101, "ptrace", syscalls.CapError(linuxerr.ENOSYS))
	s.Register(169, "reboot", syscalls.CapError(linuxerr.ENOSYS))

	return s
}
