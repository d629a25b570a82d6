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

package sched

import (
	"testing"

	"protonos.dev/protonos/pkg/kernel"
)

func TestRoundRobin(t *testing.T) {
	s := New()
	a := &kernel.Task{}
	b := &kernel.Task{}
	c := &kernel.Task{}

	s.Enqueue(a)
	s.Enqueue(b)
	s.Enqueue(c)
	s.Enqueue(b) // duplicate, ignored
	if got, want := s.Len(), 3; got != want {
		t.Fatalf("Len() = %d, want %d", got, want)
	}
	if got := s.Next(); got != a {
		t.Errorf("Next() = %v, want first enqueued task", got)
	}

	s.Yield(a)
	if got := s.Next(); got != b {
		t.Errorf("after yield, Next() = %v, want second task", got)
	}

	s.Dequeue(b)
	if got := s.Next(); got != c {
		t.Errorf("after dequeue, Next() = %v, want third task", got)
	}
	if got, want := s.Len(), 2; got != want {
		t.Errorf("Len() = %d, want %d", got, want)
	}
}

func TestEmpty(t *testing.T) {
	s := New()
	if got := s.Next(); got != nil {
		t.Errorf("Next() on empty queue = %v, want nil", got)
	}
	// Dequeue and Yield of unknown tasks must not panic.
	s.Dequeue(&kernel.Task{})
	s.Yield(&kernel.Task{})
}
