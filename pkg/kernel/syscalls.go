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

package kernel

import (
	"fmt"

	"golang.org/x/sys/unix"

	"protonos.dev/protonos/pkg/abi/linux"
	"protonos.dev/protonos/pkg/arch"
	"protonos.dev/protonos/pkg/errors/linuxerr"
	"protonos.dev/protonos/pkg/log"
	"protonos.dev/protonos/pkg/syserror"
)

// SyscallControl is returned by syscalls to alter the usual return path.
type SyscallControl struct {
	// noWriteback suppresses writing the return value into the user
	// register file. Exec uses it: the new program must see its own
	// fresh registers, not a syscall result.
	noWriteback bool

	// exited marks the calling task as gone; the dispatcher must not
	// touch it further.
	exited bool
}

// CtrlNoWriteback suppresses the return value writeback.
var CtrlNoWriteback = &SyscallControl{noWriteback: true}

// CtrlDoExit marks the calling task exited.
var CtrlDoExit = &SyscallControl{noWriteback: true, exited: true}

// SyscallFn is a syscall implementation.
type SyscallFn func(t *Task, args arch.SyscallArguments) (uintptr, *SyscallControl, error)

// Syscall describes one syscall: its name for tracing and its
// implementation.
type Syscall struct {
	Name string
	Fn   SyscallFn
}

// SyscallTable is the dispatch table mapping syscall numbers to
// implementations. Tables are assembled by the syscall packages and
// handed to the kernel at construction, so alternate personalities can
// coexist.
type SyscallTable struct {
	name  string
	table [linux.MaxSyscallNum + 1]Syscall
}

// NewSyscallTable returns an empty table.
func NewSyscallTable(name string) *SyscallTable {
	return &SyscallTable{name: name}
}

// Register installs a syscall at the given number. Numbers beyond the
// table are ignored, so a personality can carry entries for syscalls
// this build does not dispatch. Registering over an existing entry
// panics: tables are built once at startup and a double registration is
// a bug.
func (s *SyscallTable) Register(sysno uintptr, name string, fn SyscallFn) {
	if sysno > linux.MaxSyscallNum {
		return
	}
	if s.table[sysno].Fn != nil {
		panic(fmt.Sprintf("duplicate syscall %d (%s and %s)", sysno, s.table[sysno].Name, name))
	}
	s.table[sysno] = Syscall{Name: name, Fn: fn}
}

// Lookup returns the handler for sysno, or nil.
func (s *SyscallTable) Lookup(sysno uintptr) SyscallFn {
	if sysno > linux.MaxSyscallNum {
		return nil
	}
	return s.table[sysno].Fn
}

// Name returns a human readable name for sysno.
func (s *SyscallTable) Name(sysno uintptr) string {
	if sysno <= linux.MaxSyscallNum && s.table[sysno].Name != "" {
		return s.table[sysno].Name
	}
	return fmt.Sprintf("sys_%d", sysno)
}

// Registered returns the number of installed syscalls.
func (s *SyscallTable) Registered() int {
	n := 0
	for i := range s.table {
		if s.table[i].Fn != nil {
			n++
		}
	}
	return n
}

// HandleSyscall is the trap entry for a syscall exception. The platform
// hands in the saved user register frame; the kernel resolves the task
// that owns the CPU, points it at the frame, and dispatches. The
// returned bool reports whether the frame should be resumed.
//
// A frame with no runnable task behind it gets special handling: exit
// is honored silently, since the final program's exit leaves nothing to
// run, and anything else is an unrecoverable request error answered
// with ESRCH.
func (k *Kernel) HandleSyscall(regs *arch.Context) bool {
	t := k.scheduler.Next()
	if t == nil {
		sysno := regs.SyscallNo()
		if sysno == unix.SYS_EXIT {
			log.Infof("exit(%d) with no current task", regs.SyscallArgs()[0].Value)
			return false
		}
		log.Warningf("%s trapped with no current task", k.table.Name(sysno))
		regs.SetReturn(uintptrErrno(linuxerr.ESRCH))
		return true
	}
	t.archCtx = regs
	return t.ExecuteSyscall()
}

// ExecuteSyscall runs the syscall currently staged in the task's
// registers: the number in the syscall register, arguments in the
// convention's argument registers. The result register is updated unless
// the syscall says otherwise.
//
// The returned bool is false when the task exited during the call.
func (t *Task) ExecuteSyscall() bool {
	sysno := t.archCtx.SyscallNo()
	args := t.archCtx.SyscallArgs()

	fn := t.k.table.Lookup(sysno)
	if fn == nil {
		log.Infof("%v: unknown syscall %d", t, sysno)
		t.archCtx.SetReturn(uintptrErrno(linuxerr.ENOSYS))
		return true
	}

	if log.IsLogging(log.Debug) {
		log.Debugf("%v: %s(%#x, %#x, %#x)", t, t.k.table.Name(sysno), args[0].Value, args[1].Value, args[2].Value)
	}

	rval, ctrl, err := fn(t, args)
	if ctrl != nil {
		if ctrl.exited {
			return false
		}
		if ctrl.noWriteback {
			return true
		}
	}
	if err != nil {
		rval = uintptrErrno(err)
	}
	t.archCtx.SetReturn(rval)
	return true
}

// uintptrErrno converts a syscall error into the negated errno word the
// user sees in the return register.
func uintptrErrno(err error) uintptr {
	return -uintptr(syserror.ExtractErrno(err))
}
