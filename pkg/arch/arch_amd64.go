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

package arch

// Registers is the set of general purpose registers saved on the kernel
// stack at trap entry for the x86-64 architecture. The layout matches the
// order in which the low-level entry path pushes them, so the struct can be
// overlaid on the trap frame.
type Registers struct {
	R15      uint64
	R14      uint64
	R13      uint64
	R12      uint64
	Rbp      uint64
	Rbx      uint64
	R11      uint64
	R10      uint64
	R9       uint64
	R8       uint64
	Rax      uint64
	Rcx      uint64
	Rdx      uint64
	Rsi      uint64
	Rdi      uint64
	Orig_rax uint64
	Rip      uint64
	Cs       uint64
	Eflags   uint64
	Rsp      uint64
	Ss       uint64
}

// Context represents the architecture-specific execution state of a single
// thread: the user register file plus whatever else must survive a trap.
type Context struct {
	Regs Registers
}

// NewContext returns a fresh Context with a zeroed register file.
func NewContext() *Context {
	return &Context{}
}

// Fork returns an exact copy of this context, for use by a new child
// thread.
func (c *Context) Fork() *Context {
	nc := *c
	return &nc
}

// SyscallNo returns the syscall number for the current trap. The number is
// taken from Orig_rax rather than Rax because the latter is overwritten
// with the return value.
func (c *Context) SyscallNo() uintptr {
	return uintptr(c.Regs.Orig_rax)
}

// SyscallArgs returns the syscall arguments for the current trap, in the
// order fixed by the x86-64 syscall convention (rdi, rsi, rdx, r10, r8,
// r9).
func (c *Context) SyscallArgs() SyscallArguments {
	return SyscallArguments{
		SyscallArgument{Value: uintptr(c.Regs.Rdi)},
		SyscallArgument{Value: uintptr(c.Regs.Rsi)},
		SyscallArgument{Value: uintptr(c.Regs.Rdx)},
		SyscallArgument{Value: uintptr(c.Regs.R10)},
		SyscallArgument{Value: uintptr(c.Regs.R8)},
		SyscallArgument{Value: uintptr(c.Regs.R9)},
	}
}

// SetReturn writes the syscall return value into the register the caller
// reads it from.
func (c *Context) SetReturn(v uintptr) {
	c.Regs.Rax = uint64(v)
}

// Return reads the current syscall return register.
func (c *Context) Return() uintptr {
	return uintptr(c.Regs.Rax)
}

// SetIP sets the instruction pointer.
func (c *Context) SetIP(ip uint64) {
	c.Regs.Rip = ip
}

// IP returns the instruction pointer.
func (c *Context) IP() uint64 {
	return c.Regs.Rip
}

// SetStack sets the user stack pointer.
func (c *Context) SetStack(sp uint64) {
	c.Regs.Rsp = sp
}

// Stack returns the user stack pointer.
func (c *Context) Stack() uint64 {
	return c.Regs.Rsp
}
