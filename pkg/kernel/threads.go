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
	"sync"

	"protonos.dev/protonos/pkg/errors/linuxerr"
)

// ThreadID is a process identifier.
type ThreadID int32

// InitTID is the thread ID given to the first task.
const InitTID ThreadID = 1

// maxTID is the highest thread ID handed out. IDs wrap around and skip
// live tasks, like kernel.pid_max.
const maxTID = 32768

// TaskSet owns all tasks in the system and the relationships between
// them.
//
// A single mutex guards the ID table and the parent/child tree. Task
// lifecycle transitions (exit, reap, reparent) hold it, so a wait seeing
// a child sees a consistent state for it.
type TaskSet struct {
	mu sync.RWMutex

	// tasks maps all live and zombie thread IDs.
	tasks map[ThreadID]*Task

	// last is the most recently assigned ID.
	last ThreadID
}

func newTaskSet() *TaskSet {
	return &TaskSet{tasks: make(map[ThreadID]*Task)}
}

// assignID gives t a free thread ID and publishes it.
func (ts *TaskSet) assignID(t *Task) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	for tries := 0; tries < maxTID; tries++ {
		ts.last++
		if ts.last > maxTID {
			ts.last = InitTID
		}
		if _, taken := ts.tasks[ts.last]; !taken {
			t.id = ts.last
			// A task with no process group yet leads its own.
			if t.pgid == 0 {
				t.pgid = t.id
			}
			if t.sid == 0 {
				t.sid = t.id
			}
			ts.tasks[t.id] = t
			if t.parent != nil {
				t.parent.children[t.id] = t
			}
			return nil
		}
	}
	return linuxerr.EAGAIN
}

// TaskWithID returns the task with the given ID, or nil.
func (ts *TaskSet) TaskWithID(id ThreadID) *Task {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.tasks[id]
}

// LiveTasks returns the number of tasks, including unreaped zombies.
func (ts *TaskSet) LiveTasks() int {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return len(ts.tasks)
}

// Tasks returns a snapshot of all tasks.
func (ts *TaskSet) Tasks() []*Task {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	tasks := make([]*Task, 0, len(ts.tasks))
	for _, t := range ts.tasks {
		tasks = append(tasks, t)
	}
	return tasks
}

// removeLocked unpublishes t after it has been reaped.
//
// Preconditions: ts.mu must be locked for writing.
func (ts *TaskSet) removeLocked(t *Task) {
	delete(ts.tasks, t.id)
	if t.parent != nil {
		delete(t.parent.children, t.id)
		t.parent = nil
	}
}
