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
	"protonos.dev/protonos/pkg/abi/linux"
	"protonos.dev/protonos/pkg/errors/linuxerr"
	"protonos.dev/protonos/pkg/log"
	"protonos.dev/protonos/pkg/waiter"
)

// SendSignal delivers sig to the task. SIGKILL and SIGSTOP act
// immediately and cannot be caught or blocked; everything else follows
// the task's registered disposition.
func (t *Task) SendSignal(sig linux.Signal) error {
	if !sig.IsValid() {
		return linuxerr.EINVAL
	}

	switch sig {
	case linux.SIGKILL:
		t.Exit(linux.WaitStatusTerminationSignal(sig))
		return nil
	case linux.SIGSTOP:
		t.stop(sig)
		return nil
	case linux.SIGCONT:
		t.cont()
		return nil
	}

	act := t.sh.GetAction(sig)
	switch act.Handler {
	case linux.SIG_IGN:
		return nil
	case linux.SIG_DFL:
		if defaultActionIgnores(sig) {
			return nil
		}
		t.Exit(linux.WaitStatusTerminationSignal(sig))
		return nil
	}

	// A caught signal becomes pending unless blocked, and interrupts
	// any syscall the task is sleeping in.
	ts := t.k.tasks
	ts.mu.Lock()
	blocked := t.signalMask&linux.SignalSetOf(sig) != 0
	t.pendingSignals |= linux.SignalSetOf(sig)
	ts.mu.Unlock()
	if !blocked {
		t.interruptSelf()
	}
	return nil
}

// defaultActionIgnores returns whether SIG_DFL discards the signal.
func defaultActionIgnores(sig linux.Signal) bool {
	switch sig {
	case linux.SIGCHLD, linux.SIGURG, linux.SIGWINCH:
		return true
	}
	return false
}

// stop puts the task into the stopped state and tells the parent.
func (t *Task) stop(sig linux.Signal) {
	ts := t.k.tasks
	ts.mu.Lock()
	if t.state != taskRunning {
		ts.mu.Unlock()
		return
	}
	t.state = taskStopped
	t.stopSignal = sig
	t.stopReportable = true
	parent := t.parent
	ts.mu.Unlock()

	t.k.scheduler.Dequeue(t)
	if parent != nil {
		parent.childEvents.Notify(waiter.EventChild)
	}
	log.Debugf("%v: stopped by signal %d", t, sig)
}

// cont resumes a stopped task and tells the parent.
func (t *Task) cont() {
	ts := t.k.tasks
	ts.mu.Lock()
	if t.state != taskStopped {
		ts.mu.Unlock()
		return
	}
	t.state = taskRunning
	t.stopReportable = false
	t.contReportable = true
	parent := t.parent
	ts.mu.Unlock()

	t.k.scheduler.Enqueue(t)
	if parent != nil {
		parent.childEvents.Notify(waiter.EventChild)
	}
	log.Debugf("%v: continued", t)
}

// IsStopped returns whether the task is in the stopped state.
func (t *Task) IsStopped() bool {
	t.k.tasks.mu.RLock()
	defer t.k.tasks.mu.RUnlock()
	return t.state == taskStopped
}

// SignalMask returns the blocked signal set.
func (t *Task) SignalMask() linux.SignalSet {
	t.k.tasks.mu.RLock()
	defer t.k.tasks.mu.RUnlock()
	return t.signalMask
}

// SetSignalMask applies a sigprocmask operation and returns the previous
// mask. SIGKILL and SIGSTOP silently stay unblockable.
func (t *Task) SetSignalMask(how int32, set linux.SignalSet) (linux.SignalSet, error) {
	ts := t.k.tasks
	ts.mu.Lock()
	defer ts.mu.Unlock()

	old := t.signalMask
	set &^= linux.MakeSignalSet(linux.SIGKILL, linux.SIGSTOP)
	switch how {
	case linux.SIG_BLOCK:
		t.signalMask |= set
	case linux.SIG_UNBLOCK:
		t.signalMask &^= set
	case linux.SIG_SETMASK:
		t.signalMask = set
	default:
		return old, linuxerr.EINVAL
	}
	return old, nil
}

// PendingSignals returns and clears nothing; it reports the currently
// pending, unblocked signals.
func (t *Task) PendingSignals() linux.SignalSet {
	t.k.tasks.mu.RLock()
	defer t.k.tasks.mu.RUnlock()
	return t.pendingSignals &^ t.signalMask
}

// TakePendingSignal consumes the lowest pending unblocked signal,
// returning zero if none is pending.
func (t *Task) TakePendingSignal() linux.Signal {
	ts := t.k.tasks
	ts.mu.Lock()
	defer ts.mu.Unlock()
	deliverable := t.pendingSignals &^ t.signalMask
	if deliverable == 0 {
		return 0
	}
	for sig := linux.Signal(1); sig <= linux.SignalMaximum; sig++ {
		if deliverable&linux.SignalSetOf(sig) != 0 {
			t.pendingSignals &^= linux.SignalSetOf(sig)
			return sig
		}
	}
	return 0
}
