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

package waiter

import (
	"sync/atomic"
	"testing"
)

type callbackStub struct {
	f func(e *Entry)
}

// Callback implements EntryCallback.Callback.
func (c *callbackStub) Callback(e *Entry) {
	c.f(e)
}

func TestEmptyQueue(t *testing.T) {
	var q Queue

	// Notify the zero-value queue.
	q.Notify(EventIn)

	// Register then unregister, then notify again.
	var cnt int
	e := Entry{Callback: &callbackStub{func(*Entry) { cnt++ }}}
	q.EventRegister(&e, EventIn)
	q.EventUnregister(&e)
	q.Notify(EventIn)
	if cnt != 0 {
		t.Errorf("callbacks called on unregistered entry: got %d, want 0", cnt)
	}
}

func TestMask(t *testing.T) {
	var q Queue

	var cnt int
	e := Entry{Callback: &callbackStub{func(*Entry) { cnt++ }}}
	q.EventRegister(&e, EventIn|EventErr)

	// Notify with an overlapping mask, then with a disjoint one.
	q.Notify(EventIn | EventOut)
	if cnt != 1 {
		t.Errorf("wrong callback count after overlapping notify: got %d, want 1", cnt)
	}

	q.Notify(EventOut | EventHUp)
	if cnt != 1 {
		t.Errorf("wrong callback count after disjoint notify: got %d, want 1", cnt)
	}
}

func TestEvents(t *testing.T) {
	var q Queue

	e1 := Entry{Callback: &callbackStub{func(*Entry) {}}}
	e2 := Entry{Callback: &callbackStub{func(*Entry) {}}}
	q.EventRegister(&e1, EventIn)
	q.EventRegister(&e2, EventOut|EventHUp)

	if got, want := q.Events(), EventIn|EventOut|EventHUp; got != want {
		t.Errorf("wrong event union: got %#x, want %#x", got, want)
	}

	q.EventUnregister(&e2)
	if got, want := q.Events(), EventIn; got != want {
		t.Errorf("wrong event union after unregister: got %#x, want %#x", got, want)
	}
}

func TestChannelEntry(t *testing.T) {
	var q Queue

	e, ch := NewChannelEntry(nil)
	q.EventRegister(&e, EventChild)

	q.Notify(EventChild)
	select {
	case <-ch:
	default:
		t.Errorf("channel not written to after notify")
	}

	// A second notify with a full channel must not block.
	q.Notify(EventChild)
	q.Notify(EventChild)
	select {
	case <-ch:
	default:
		t.Errorf("channel not written to after repeated notify")
	}
}

func TestConcurrentNotify(t *testing.T) {
	var q Queue
	var cnt int64

	const waiters = 16
	entries := make([]Entry, waiters)
	for i := range entries {
		entries[i] = Entry{Callback: &callbackStub{func(*Entry) { atomic.AddInt64(&cnt, 1) }}}
		q.EventRegister(&entries[i], EventIn)
	}

	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func() {
			q.Notify(EventIn)
			done <- struct{}{}
		}()
	}
	for i := 0; i < 4; i++ {
		<-done
	}

	if got := atomic.LoadInt64(&cnt); got != 4*waiters {
		t.Errorf("wrong callback count: got %d, want %d", got, 4*waiters)
	}
}
