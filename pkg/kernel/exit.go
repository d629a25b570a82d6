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
	"protonos.dev/protonos/pkg/log"
	"protonos.dev/protonos/pkg/waiter"
)

// Exit terminates the task with the given wait status. Its resources are
// released immediately; the task lingers as a zombie holding only the
// status until the parent reaps it. Orphans are reaped on the spot.
func (t *Task) Exit(status linux.WaitStatus) {
	t.k.scheduler.Dequeue(t)

	ts := t.k.tasks
	ts.mu.Lock()
	if t.state == taskZombie {
		ts.mu.Unlock()
		return
	}
	t.state = taskZombie
	t.exitStatus = status
	t.stopReportable = false
	t.contReportable = false

	// Children outlive their parent as children of init. With no init,
	// they keep running unsupervised and reap themselves on exit.
	var init *Task
	if t.id != InitTID {
		if cand, ok := ts.tasks[InitTID]; ok && cand.state != taskZombie {
			init = cand
		}
	}
	for id, c := range t.children {
		delete(t.children, id)
		c.parent = init
		if init != nil {
			init.children[id] = c
		} else if c.state == taskZombie {
			// An orphaned zombie has nobody left to reap it.
			ts.removeLocked(c)
		}
	}

	parent := t.parent
	if parent == nil {
		ts.removeLocked(t)
	}
	ts.mu.Unlock()

	// Resource teardown happens outside the task set lock.
	t.mm.Release()
	t.fds.destroy()

	if parent != nil {
		parent.childEvents.Notify(waiter.EventChild)
	}
	log.Infof("%v: exited with status %#x", t, status)
}

// ExitCode returns the task's wait status, valid only for zombies.
func (t *Task) ExitCode() linux.WaitStatus {
	t.k.tasks.mu.RLock()
	defer t.k.tasks.mu.RUnlock()
	return t.exitStatus
}

// IsExited returns whether the task has terminated.
func (t *Task) IsExited() bool {
	t.k.tasks.mu.RLock()
	defer t.k.tasks.mu.RUnlock()
	return t.state == taskZombie
}
