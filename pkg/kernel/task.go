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

	"protonos.dev/protonos/pkg/abi/linux"
	"protonos.dev/protonos/pkg/arch"
	"protonos.dev/protonos/pkg/kernel/auth"
	"protonos.dev/protonos/pkg/limits"
	"protonos.dev/protonos/pkg/mm"
	"protonos.dev/protonos/pkg/syserror"
	"protonos.dev/protonos/pkg/waiter"
)

// taskState is the lifecycle state of a task.
type taskState int

const (
	// taskRunning is a schedulable task (it may be blocked in a
	// syscall).
	taskRunning taskState = iota

	// taskStopped is a task stopped by SIGSTOP, awaiting SIGCONT.
	taskStopped

	// taskZombie is an exited task whose status has not been reaped.
	taskZombie
)

// Task is a single thread of control: one process in a system of
// single-threaded processes. It owns an address space, a descriptor
// table, credentials and signal state, and is the receiver for every
// syscall implementation.
type Task struct {
	k *Kernel

	// id is constant after assignID.
	id ThreadID

	// name is the executable name, for logs.
	name string

	// archCtx is the saved user register file. Only the task itself
	// touches it while running; exit and exec swap pieces wholesale.
	archCtx *arch.Context

	// mm is the task's address space. Replaced on exec.
	mm *mm.MemoryManager

	// fds is the descriptor table.
	fds *FDTable

	creds  *auth.Credentials
	limits *limits.LimitSet

	// sh holds the registered signal actions.
	sh *SignalHandlers

	// The following fields are protected by k.tasks.mu.

	parent   *Task
	children map[ThreadID]*Task
	pgid     ThreadID
	sid      ThreadID

	state      taskState
	exitStatus linux.WaitStatus

	// stopReportable and contReportable mark a stop or continue not yet
	// consumed by a wait. stopSignal is the signal that stopped us.
	stopReportable bool
	contReportable bool
	stopSignal     linux.Signal

	// pendingSignals and signalMask implement minimal signal delivery.
	// Protected by k.tasks.mu as well, so kill and sigprocmask agree.
	pendingSignals linux.SignalSet
	signalMask     linux.SignalSet

	// childEvents is notified (with EventChild) each time a child
	// changes state. wait blocks on it.
	childEvents waiter.Queue

	// interrupt is signaled when a pending signal should break the task
	// out of a blocking syscall.
	interrupt chan struct{}
}

// newTask builds an unpublished task. Callers register it with
// assignID.
func (k *Kernel) newTask(m *mm.MemoryManager, creds *auth.Credentials, lim *limits.LimitSet) *Task {
	return &Task{
		k:         k,
		archCtx:   arch.NewContext(),
		mm:        m,
		fds:       NewFDTable(lim),
		creds:     creds,
		limits:    lim,
		sh:        NewSignalHandlers(),
		children:  make(map[ThreadID]*Task),
		interrupt: make(chan struct{}, 1),
	}
}

// ID returns the task's thread ID.
func (t *Task) ID() ThreadID {
	return t.id
}

// Name returns the executable name.
func (t *Task) Name() string {
	return t.name
}

// Kernel returns the owning kernel.
func (t *Task) Kernel() *Kernel {
	return t.k
}

// Arch returns the task's saved register state.
func (t *Task) Arch() *arch.Context {
	return t.archCtx
}

// MemoryManager returns the task's address space.
func (t *Task) MemoryManager() *mm.MemoryManager {
	return t.mm
}

// FDTable returns the task's descriptor table.
func (t *Task) FDTable() *FDTable {
	return t.fds
}

// Credentials returns the task's credentials.
func (t *Task) Credentials() *auth.Credentials {
	return t.creds
}

// Limits returns the task's resource limits.
func (t *Task) Limits() *limits.LimitSet {
	return t.limits
}

// SignalHandlers returns the task's signal action table.
func (t *Task) SignalHandlers() *SignalHandlers {
	return t.sh
}

// Parent returns the task's parent, or nil.
func (t *Task) Parent() *Task {
	t.k.tasks.mu.RLock()
	defer t.k.tasks.mu.RUnlock()
	return t.parent
}

// ProcessGroupID returns the task's process group.
func (t *Task) ProcessGroupID() ThreadID {
	t.k.tasks.mu.RLock()
	defer t.k.tasks.mu.RUnlock()
	return t.pgid
}

// SessionID returns the task's session.
func (t *Task) SessionID() ThreadID {
	t.k.tasks.mu.RLock()
	defer t.k.tasks.mu.RUnlock()
	return t.sid
}

// String implements fmt.Stringer.
func (t *Task) String() string {
	return fmt.Sprintf("task %d (%s)", t.id, t.name)
}

// interruptSelf wakes the task if it is blocked in a syscall.
func (t *Task) interruptSelf() {
	select {
	case t.interrupt <- struct{}{}:
	default:
	}
}

// Block waits for ch to be signaled or for an interrupt, returning
// syserror.ErrInterrupted in the latter case. Syscalls use it to sleep on
// waiter channels.
func (t *Task) Block(ch <-chan struct{}) error {
	select {
	case <-ch:
		return nil
	case <-t.interrupt:
		return syserror.ErrInterrupted
	}
}

// interrupted reports and consumes a pending interrupt without blocking.
func (t *Task) interrupted() bool {
	select {
	case <-t.interrupt:
		return true
	default:
		return false
	}
}
