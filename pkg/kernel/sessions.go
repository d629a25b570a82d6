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
	"protonos.dev/protonos/pkg/errors/linuxerr"
)

// SetProcessGroupID implements the semantics of setpgid(2) for the
// calling task: pid zero means the caller, pgid zero means a group named
// after the target.
func (t *Task) SetProcessGroupID(pid, pgid ThreadID) error {
	if pgid < 0 {
		return linuxerr.EINVAL
	}

	ts := t.k.tasks
	ts.mu.Lock()
	defer ts.mu.Unlock()

	target := t
	if pid != 0 && pid != t.id {
		child, ok := t.children[pid]
		if !ok {
			// Only the caller and its children can be moved.
			return linuxerr.ESRCH
		}
		target = child
	}
	if pgid == 0 {
		pgid = target.id
	}

	// A new group is named after its leader; joining an existing group
	// requires it to be in the caller's session.
	if pgid != target.id {
		found := false
		for _, other := range ts.tasks {
			if other.pgid == pgid && other.sid == t.sid {
				found = true
				break
			}
		}
		if !found {
			return linuxerr.EPERM
		}
	}
	if target.sid != t.sid {
		return linuxerr.EPERM
	}

	target.pgid = pgid
	return nil
}

// SetSession implements setsid(2): the caller leaves its process group
// and becomes the leader of a new session. Process group leaders cannot
// call it.
func (t *Task) SetSession() (ThreadID, error) {
	ts := t.k.tasks
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if t.pgid == t.id {
		return 0, linuxerr.EPERM
	}
	t.sid = t.id
	t.pgid = t.id
	return t.sid, nil
}

// Yield hands the processor to another runnable task.
func (t *Task) Yield() {
	t.k.scheduler.Yield(t)
}
