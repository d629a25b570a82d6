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

// Package fs provides the kernel's file abstraction: a reference counted
// File wrapping a FileOperations implementation, with the offset cursor
// and flag checks handled in one place.
package fs

import (
	"sync"
	"sync/atomic"

	"protonos.dev/protonos/pkg/abi/linux"
	"protonos.dev/protonos/pkg/errors/linuxerr"
	"protonos.dev/protonos/pkg/waiter"
)

// FileFlags encodes the open(2) flags a File was opened with.
type FileFlags struct {
	// Read and Write allow the corresponding direction.
	Read  bool
	Write bool

	// NonBlocking turns would-block conditions into EAGAIN.
	NonBlocking bool

	// Append forces writes to the end of the file.
	Append bool
}

// ToLinux returns the flag word as open(2) would report it.
func (f FileFlags) ToLinux() uint32 {
	var mask uint32
	switch {
	case f.Read && f.Write:
		mask = linux.O_RDWR
	case f.Write:
		mask = linux.O_WRONLY
	default:
		mask = linux.O_RDONLY
	}
	if f.NonBlocking {
		mask |= linux.O_NONBLOCK
	}
	if f.Append {
		mask |= linux.O_APPEND
	}
	return mask
}

// FileOperations is the behavior of one kind of open file. Reads and
// writes are positional; File owns the cursor.
//
// Implementations that can block (pipes) return syserror.ErrWouldBlock
// from Read and Write and signal readiness through the embedded Waitable.
type FileOperations interface {
	waiter.Waitable

	// Read reads into dst from position offset, returning the number of
	// bytes read. A zero count with a nil error means end of file.
	Read(dst []byte, offset int64) (int64, error)

	// Write writes src at position offset, returning the number of bytes
	// written.
	Write(src []byte, offset int64) (int64, error)

	// Seek validates and computes a new cursor for the given whence and
	// offset. Non-seekable files return linuxerr.ESPIPE.
	Seek(current int64, whence int32, offset int64) (int64, error)

	// Stat fills attributes of the file.
	Stat() (linux.Stat, error)

	// Release is called when the last reference to the File is dropped.
	Release()
}

// File is an open file description. It is shared between file descriptors
// (and across fork) and freed when the last reference is dropped.
type File struct {
	refs int64

	flags FileFlags

	// mu serializes cursor movement, so concurrent reads observe
	// distinct offsets.
	mu     sync.Mutex
	offset int64

	ops FileOperations
}

// NewFile returns a File at offset 0 holding one reference.
func NewFile(ops FileOperations, flags FileFlags) *File {
	return &File{refs: 1, flags: flags, ops: ops}
}

// IncRef adds a reference.
func (f *File) IncRef() {
	atomic.AddInt64(&f.refs, 1)
}

// DecRef drops a reference, releasing the underlying file when none
// remain.
func (f *File) DecRef() {
	if atomic.AddInt64(&f.refs, -1) == 0 {
		f.ops.Release()
	}
}

// Flags returns the flags the file was opened with.
func (f *File) Flags() FileFlags {
	return f.flags
}

// Ops returns the underlying FileOperations.
func (f *File) Ops() FileOperations {
	return f.ops
}

// Readiness implements waiter.Waitable.Readiness.
func (f *File) Readiness(mask waiter.EventMask) waiter.EventMask {
	return f.ops.Readiness(mask)
}

// EventRegister implements waiter.Waitable.EventRegister.
func (f *File) EventRegister(e *waiter.Entry, mask waiter.EventMask) {
	f.ops.EventRegister(e, mask)
}

// EventUnregister implements waiter.Waitable.EventUnregister.
func (f *File) EventUnregister(e *waiter.Entry) {
	f.ops.EventUnregister(e)
}

// Read reads at the current cursor and advances it.
func (f *File) Read(dst []byte) (int64, error) {
	if !f.flags.Read {
		return 0, linuxerr.EBADF
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n, err := f.ops.Read(dst, f.offset)
	f.offset += n
	return n, err
}

// Write writes at the current cursor (or the end of the file for append
// opens) and advances it.
func (f *File) Write(src []byte) (int64, error) {
	if !f.flags.Write {
		return 0, linuxerr.EBADF
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	offset := f.offset
	if f.flags.Append {
		st, err := f.ops.Stat()
		if err != nil {
			return 0, err
		}
		offset = st.Size
	}
	n, err := f.ops.Write(src, offset)
	f.offset = offset + n
	return n, err
}

// Preadv reads from an explicit position without moving the cursor.
func (f *File) Preadv(dst []byte, offset int64) (int64, error) {
	if !f.flags.Read {
		return 0, linuxerr.EBADF
	}
	return f.ops.Read(dst, offset)
}

// Pwritev writes at an explicit position without moving the cursor.
func (f *File) Pwritev(src []byte, offset int64) (int64, error) {
	if !f.flags.Write {
		return 0, linuxerr.EBADF
	}
	return f.ops.Write(src, offset)
}

// Seek moves the cursor.
func (f *File) Seek(whence int32, offset int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, err := f.ops.Seek(f.offset, whence, offset)
	if err != nil {
		return 0, err
	}
	f.offset = cur
	return cur, nil
}

// Offset returns the current cursor, for diagnostics.
func (f *File) Offset() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.offset
}

// Stat returns the file attributes.
func (f *File) Stat() (linux.Stat, error) {
	return f.ops.Stat()
}
