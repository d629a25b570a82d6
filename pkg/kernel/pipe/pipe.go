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

// Package pipe provides an in-memory implementation of an anonymous,
// unidirectional pipe.
package pipe

import (
	"sync"
	"sync/atomic"

	"protonos.dev/protonos/pkg/abi/linux"
	"protonos.dev/protonos/pkg/errors/linuxerr"
	"protonos.dev/protonos/pkg/fs"
	"protonos.dev/protonos/pkg/syserror"
	"protonos.dev/protonos/pkg/waiter"
)

// DefaultPipeSize is the capacity in bytes of a newly created pipe.
const DefaultPipeSize = 65536

// Pipe is a circular buffer with a reader end and a writer end. Data
// written is readable exactly once, in order.
//
// The buffer invariant is 0 <= size <= capacity; off is the position of
// the first unread byte.
type Pipe struct {
	// queue is notified as the pipe becomes readable, writable, or one
	// side is gone.
	queue waiter.Queue

	// readers and writers count the open ends, accessed atomically.
	readers int64
	writers int64

	mu   sync.Mutex
	buf  []byte
	off  int
	size int
}

// New returns a pipe with the given capacity and no open ends.
func New(capacity int64) *Pipe {
	return &Pipe{buf: make([]byte, capacity)}
}

// NewConnectedPipe returns the two ends of a fresh pipe as open files,
// reader first. Each carries one reference.
func NewConnectedPipe() (*fs.File, *fs.File) {
	return NewConnectedPipeFlags(false)
}

// NewConnectedPipeFlags is NewConnectedPipe with both ends optionally
// opened non-blocking, as pipe2 with O_NONBLOCK does.
func NewConnectedPipeFlags(nonBlocking bool) (*fs.File, *fs.File) {
	p := New(DefaultPipeSize)
	p.rOpen()
	p.wOpen()
	r := fs.NewFile(&Reader{pipe: p}, fs.FileFlags{Read: true, NonBlocking: nonBlocking})
	w := fs.NewFile(&Writer{pipe: p}, fs.FileFlags{Write: true, NonBlocking: nonBlocking})
	return r, w
}

// read copies up to len(dst) unread bytes out of the pipe.
func (p *Pipe) read(dst []byte) (int64, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.size == 0 {
		// An empty pipe with no writers left is at end of file.
		if atomic.LoadInt64(&p.writers) == 0 {
			return 0, nil
		}
		return 0, syserror.ErrWouldBlock
	}

	n := len(dst)
	if n > p.size {
		n = p.size
	}
	for done := 0; done < n; {
		c := copy(dst[done:n], p.buf[p.off:min(p.off+(n-done), len(p.buf))])
		p.off = (p.off + c) % len(p.buf)
		done += c
	}
	p.size -= n

	// Space became available for writers.
	p.queue.Notify(waiter.EventOut)
	return int64(n), nil
}

// write copies bytes of src into the pipe, possibly fewer than all of
// them when the buffer is short on space.
func (p *Pipe) write(src []byte) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if atomic.LoadInt64(&p.readers) == 0 {
		return 0, linuxerr.EPIPE
	}
	if len(src) == 0 {
		return 0, nil
	}

	avail := len(p.buf) - p.size
	if avail == 0 {
		return 0, syserror.ErrWouldBlock
	}
	n := len(src)
	if n > avail {
		n = avail
	}
	end := (p.off + p.size) % len(p.buf)
	for done := 0; done < n; {
		c := copy(p.buf[end:min(end+(n-done), len(p.buf))], src[done:n])
		end = (end + c) % len(p.buf)
		done += c
	}
	p.size += n

	p.queue.Notify(waiter.EventIn)
	return int64(n), nil
}

func (p *Pipe) rOpen() {
	atomic.AddInt64(&p.readers, 1)
}

func (p *Pipe) wOpen() {
	atomic.AddInt64(&p.writers, 1)
}

func (p *Pipe) rClose() {
	if atomic.AddInt64(&p.readers, -1) < 0 {
		panic("closed a pipe reader that was not open")
	}
	// Writers see EPIPE from now on.
	p.queue.Notify(waiter.EventErr | waiter.EventOut)
}

func (p *Pipe) wClose() {
	if atomic.AddInt64(&p.writers, -1) < 0 {
		panic("closed a pipe writer that was not open")
	}
	// Readers drain what remains, then see end of file.
	p.queue.Notify(waiter.EventHUp | waiter.EventIn)
}

// rReadiness returns the events the reader end is ready for.
func (p *Pipe) rReadiness() waiter.EventMask {
	var ready waiter.EventMask
	p.mu.Lock()
	if p.size > 0 {
		ready |= waiter.EventIn
	}
	p.mu.Unlock()
	if atomic.LoadInt64(&p.writers) == 0 {
		ready |= waiter.EventIn | waiter.EventHUp
	}
	return ready
}

// wReadiness returns the events the writer end is ready for.
func (p *Pipe) wReadiness() waiter.EventMask {
	var ready waiter.EventMask
	p.mu.Lock()
	if p.size < len(p.buf) {
		ready |= waiter.EventOut
	}
	p.mu.Unlock()
	if atomic.LoadInt64(&p.readers) == 0 {
		ready |= waiter.EventErr
	}
	return ready
}

// Queued returns the number of unread bytes, for diagnostics.
func (p *Pipe) Queued() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size
}

func (p *Pipe) stat() (linux.Stat, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return linux.Stat{
		Mode:    linux.ModeNamedPipe | 0600,
		Nlink:   1,
		Size:    int64(p.size),
		Blksize: linux.DefaultBlockSize,
	}, nil
}
