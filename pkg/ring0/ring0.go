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

// Package ring0 provides the lowest level of the trap path: configuring
// the processor so that SYSCALL from user mode lands on a known kernel
// entry with a known kernel stack.
//
// The machine registers themselves are reached through the MSRs
// interface, so the package works over an emulated processor as well as a
// real one.
package ring0

import (
	"sync"

	"protonos.dev/protonos/pkg/log"
)

// Model specific registers used by the 64-bit SYSCALL path.
const (
	_MSR_EFER         = 0xC0000080
	_MSR_STAR         = 0xC0000081
	_MSR_LSTAR        = 0xC0000082
	_MSR_CSTAR        = 0xC0000083
	_MSR_SYSCALL_MASK = 0xC0000084
)

// _EFER_SCE enables the SYSCALL/SYSRET instructions.
const _EFER_SCE = 0x001

// Eflags bits masked off on kernel entry. Interrupts, direction, traps and
// the nested task flag must all be clear while the entry stub runs on the
// kernel stack.
const (
	_RFLAGS_CF = 1 << 0
	_RFLAGS_TF = 1 << 8
	_RFLAGS_IF = 1 << 9
	_RFLAGS_DF = 1 << 10
	_RFLAGS_NT = 1 << 14
	_RFLAGS_AC = 1 << 18

	// KernelFlagsClear is the mask programmed into MSR_SYSCALL_MASK.
	KernelFlagsClear = _RFLAGS_CF | _RFLAGS_TF | _RFLAGS_IF | _RFLAGS_DF | _RFLAGS_NT | _RFLAGS_AC
)

// Segment selectors, laid out GDT-style so that SYSRET's fixed selector
// arithmetic works.
const (
	Kcode   = 0x08
	Kdata   = 0x10
	Ucode32 = 0x18
	Udata   = 0x20
	Ucode64 = 0x28
)

// KernelStackSize is the size of the per-CPU stack traps run on.
const KernelStackSize = 16 * 1024

// MSRs writes model specific registers. Implementations exist for real
// hardware (WRMSR) and for tests.
type MSRs interface {
	Write(reg uint64, value uint64)
}

// StackAllocator carves out kernel stacks. It returns the top-of-stack
// address (stacks grow down).
type StackAllocator interface {
	AllocStack(size uint64) (uint64, error)
}

// Kernel holds the trap entry state for one CPU.
type Kernel struct {
	msrs  MSRs
	stack StackAllocator

	mu          sync.Mutex
	initialized bool
	stackTop    uint64
}

// New returns an uninitialized Kernel that programs registers through
// msrs and takes its trap stack from stack.
func New(msrs MSRs, stack StackAllocator) *Kernel {
	return &Kernel{msrs: msrs, stack: stack}
}

// Init programs the SYSCALL entry MSRs and allocates the kernel trap
// stack. Calling Init on an initialized Kernel is a no-op, so a CPU that
// re-runs its bring-up path keeps its existing stack.
//
// A stack allocation failure is logged and bring-up continues with a zero
// stack top. The fault on first trap is preferable to halting the boot
// before the console is up.
func (k *Kernel) Init(entry uint64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.initialized {
		return
	}

	top, err := k.stack.AllocStack(KernelStackSize)
	if err != nil {
		log.Warningf("trap stack allocation failed: %v", err)
		top = 0
	}
	k.stackTop = top

	k.msrs.Write(_MSR_EFER, _EFER_SCE)
	k.msrs.Write(_MSR_LSTAR, entry)
	k.msrs.Write(_MSR_STAR, uint64(Kcode)<<32|uint64(Ucode32)<<48)
	k.msrs.Write(_MSR_SYSCALL_MASK, KernelFlagsClear)
	// 32-bit SYSCALL shares the 64-bit entry; the stub rejects it.
	k.msrs.Write(_MSR_CSTAR, entry)

	k.initialized = true
}

// IsInitialized returns whether Init has completed.
func (k *Kernel) IsInitialized() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.initialized
}

// StackTop returns the kernel trap stack top, or zero if allocation
// failed.
func (k *Kernel) StackTop() uint64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.stackTop
}
