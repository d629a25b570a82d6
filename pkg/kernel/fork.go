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
	"protonos.dev/protonos/pkg/cleanup"
	"protonos.dev/protonos/pkg/log"
)

// Fork creates a duplicate of the calling task. The child shares the
// parent's memory copy-on-write, inherits copies of the descriptor table,
// credentials, limits and signal actions, and resumes at the same
// instruction with a zero return value in its registers.
func (t *Task) Fork() (*Task, error) {
	var cu cleanup.Cleanup
	defer cu.Clean()

	childMM, err := t.mm.Fork()
	if err != nil {
		return nil, err
	}
	cu.Add(func() { childMM.Release() })

	child := t.k.newTask(childMM, t.creds.Fork(), t.limits.GetCopy())
	child.name = t.name
	child.fds = t.fds.Fork(child.limits)
	cu.Add(func() { child.fds.destroy() })
	child.sh = t.sh.Fork()

	// The child resumes from the same trap with rax cleared; the parent
	// gets the child's ID from the same register.
	child.archCtx = t.archCtx.Fork()
	child.archCtx.SetReturn(0)

	t.k.tasks.mu.Lock()
	child.parent = t
	child.pgid = t.pgid
	child.sid = t.sid
	child.signalMask = t.signalMask
	t.k.tasks.mu.Unlock()

	if err := t.k.tasks.assignID(child); err != nil {
		return nil, err
	}
	cu.Release()
	t.k.scheduler.Enqueue(child)
	log.Debugf("%v: forked child %d", t, child.ID())
	return child, nil
}
