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

// Package sched provides a cooperative round-robin scheduler. Tasks run
// until they yield or block; there is no preemption.
package sched

import (
	"sync"

	"protonos.dev/protonos/pkg/kernel"
)

// RoundRobin keeps runnable tasks in FIFO order. A yielding task moves to
// the back of the queue.
type RoundRobin struct {
	mu    sync.Mutex
	queue []*kernel.Task
}

// New returns an empty RoundRobin scheduler.
func New() *RoundRobin {
	return &RoundRobin{}
}

// Enqueue adds t to the back of the run queue. Enqueueing a task that is
// already queued is a no-op.
func (s *RoundRobin) Enqueue(t *kernel.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range s.queue {
		if q == t {
			return
		}
	}
	s.queue = append(s.queue, t)
}

// Dequeue removes t from the run queue, wherever it is.
func (s *RoundRobin) Dequeue(t *kernel.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, q := range s.queue {
		if q == t {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}

// Yield moves t to the back of the run queue.
func (s *RoundRobin) Yield(t *kernel.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, q := range s.queue {
		if q == t {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			s.queue = append(s.queue, t)
			return
		}
	}
}

// Next returns the task at the front of the run queue without removing it,
// or nil if the queue is empty.
func (s *RoundRobin) Next() *kernel.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil
	}
	return s.queue[0]
}

// Len returns the number of runnable tasks.
func (s *RoundRobin) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}
